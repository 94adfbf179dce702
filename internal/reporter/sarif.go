package reporter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// SARIFReporter outputs the scan result in SARIF format for GitHub Code Scanning
type SARIFReporter struct{}

const (
	ruleConfirmed = "shai-hulud/confirmed"
	rulePossible  = "shai-hulud/published-after-attack"
	ruleSkipped   = "shai-hulud/not-checked"
)

// SARIF structures
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ShortDescription sarifText       `json:"shortDescription"`
	FullDescription  sarifText       `json:"fullDescription"`
	Help             sarifText       `json:"help"`
	HelpURI          string          `json:"helpUri"`
	DefaultConfig    sarifRuleConfig `json:"defaultConfiguration"`
	Properties       sarifProperties `json:"properties"`
}

type sarifText struct {
	Text string `json:"text"`
}

type sarifRuleConfig struct {
	Level string `json:"level"`
}

type sarifProperties struct {
	Tags             []string `json:"tags"`
	SecuritySeverity string   `json:"security-severity,omitempty"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             sarifText         `json:"message"`
	Locations           []sarifLocation   `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

func sarifRules(attackInstant string) []sarifRule {
	return []sarifRule{
		{
			ID:               ruleConfirmed,
			Name:             "CompromisedPackage",
			ShortDescription: sarifText{Text: "Package compromised by Shai-Hulud v2"},
			FullDescription:  sarifText{Text: "The package is on the list of npm packages compromised by the Shai-Hulud v2 supply-chain attack."},
			Help:             sarifText{Text: "Remove the package or pin a version published before the attack, rotate any credentials available to the install environment, and audit CI runners that installed it."},
			HelpURI:          "https://github.com/wiz-sec-public/wiz-research-iocs",
			DefaultConfig:    sarifRuleConfig{Level: "error"},
			Properties: sarifProperties{
				Tags:             []string{"security", "supply-chain", "npm", "shai-hulud"},
				SecuritySeverity: "9.5",
			},
		},
		{
			ID:               rulePossible,
			Name:             "PublishedAfterAttack",
			ShortDescription: sarifText{Text: "Package version published after the Shai-Hulud v2 attack started"},
			FullDescription:  sarifText{Text: fmt.Sprintf("An installed version of the package was published after %s and may carry the worm.", attackInstant)},
			Help:             sarifText{Text: "Review the release contents for preinstall scripts and unexpected files, or pin a version published before the attack."},
			HelpURI:          "https://github.com/wiz-sec-public/wiz-research-iocs",
			DefaultConfig:    sarifRuleConfig{Level: "warning"},
			Properties: sarifProperties{
				Tags:             []string{"security", "supply-chain", "npm", "shai-hulud"},
				SecuritySeverity: "6.0",
			},
		},
		{
			ID:               ruleSkipped,
			Name:             "PublishDateUnknown",
			ShortDescription: sarifText{Text: "Package publish date could not be checked"},
			FullDescription:  sarifText{Text: "Registry metadata for the package could not be retrieved, so its versions were not compared against the attack date."},
			Help:             sarifText{Text: "Re-run the scan or check the package manually."},
			HelpURI:          "https://github.com/wiz-sec-public/wiz-research-iocs",
			DefaultConfig:    sarifRuleConfig{Level: "note"},
			Properties: sarifProperties{
				Tags: []string{"supply-chain", "npm"},
			},
		},
	}
}

// Report generates SARIF output for the given scan result
func (r *SARIFReporter) Report(result *models.ScanResult) ([]byte, error) {
	rules := sarifRules(result.AttackInstantString())

	report := sarifReport{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:           "hulud-checker",
					Version:        "1.0.0",
					InformationURI: "https://github.com/ethanolivertroy/hulud-checker",
					Rules:          rules,
				},
			},
			Results: r.buildResults(result, rules),
		}},
	}

	return json.MarshalIndent(report, "", "  ")
}

func (r *SARIFReporter) buildResults(result *models.ScanResult, rules []sarifRule) []sarifResult {
	results := []sarifResult{}

	for _, p := range result.Confirmed.Sorted() {
		msg := fmt.Sprintf("Dependency %s is on the list of packages compromised by Shai-Hulud v2", p.String())
		if hits := result.Matches[p.Name]; len(hits) > 0 {
			msg += fmt.Sprintf(" (listed versions installed: %s)", strings.Join(hits, ", "))
		}
		results = append(results, r.result(rules, result.LockFile, 0, p, msg))
	}

	for _, p := range result.Possible.Sorted() {
		msg := fmt.Sprintf("Dependency %s has a version published after %s", p.String(), result.AttackInstantString())
		results = append(results, r.result(rules, result.LockFile, 1, p, msg))
	}

	for _, p := range result.Skipped() {
		msg := fmt.Sprintf("Publish date of %s could not be checked", p.String())
		results = append(results, r.result(rules, result.LockFile, 2, p, msg))
	}

	return results
}

func (r *SARIFReporter) result(rules []sarifRule, lockFile string, ruleIndex int, p *models.InstalledPackage, msg string) sarifResult {
	rule := rules[ruleIndex]
	return sarifResult{
		RuleID:    rule.ID,
		RuleIndex: ruleIndex,
		Level:     rule.DefaultConfig.Level,
		Message:   sarifText{Text: msg},
		Locations: []sarifLocation{{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifact{URI: lockFile},
			},
		}},
		PartialFingerprints: map[string]string{
			"primaryLocationLineHash": fmt.Sprintf("%s:%s:%s", p.Name, strings.Join(p.Versions, ","), rule.ID),
		},
	}
}
