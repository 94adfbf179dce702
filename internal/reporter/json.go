package reporter

import (
	"encoding/json"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// JSONReporter outputs the scan result in JSON format
type JSONReporter struct{}

// jsonOutput represents the JSON output structure
type jsonOutput struct {
	Summary   jsonSummary   `json:"summary"`
	Confirmed []jsonPackage `json:"confirmed"`
	Possible  []jsonPackage `json:"possibly_vulnerable"`
	Skipped   []jsonPackage `json:"skipped"`
}

type jsonSummary struct {
	LockFile         string `json:"lock_file"`
	AttackInstant    string `json:"attack_instant"`
	TotalPackages    int    `json:"total_packages"`
	AffectedInFeed   int    `json:"affected_in_feed"`
	Concurrency      int    `json:"concurrency"`
	Confirmed        int    `json:"confirmed"`
	PossiblyAffected int    `json:"possibly_vulnerable"`
	Skipped          int    `json:"skipped"`
}

type jsonPackage struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
	Listed   []string `json:"listed_versions,omitempty"`
}

// Report generates JSON output for the given scan result
func (r *JSONReporter) Report(result *models.ScanResult) ([]byte, error) {
	skipped := result.Skipped()

	output := jsonOutput{
		Summary: jsonSummary{
			LockFile:         result.LockFile,
			AttackInstant:    result.AttackInstantString(),
			TotalPackages:    result.TotalPackages,
			AffectedInFeed:   result.FeedSize,
			Concurrency:      result.Concurrency,
			Confirmed:        len(result.Confirmed),
			PossiblyAffected: len(result.Possible),
			Skipped:          len(skipped),
		},
		Confirmed: make([]jsonPackage, 0, len(result.Confirmed)),
		Possible:  make([]jsonPackage, 0, len(result.Possible)),
		Skipped:   make([]jsonPackage, 0, len(skipped)),
	}

	for _, p := range result.Confirmed.Sorted() {
		output.Confirmed = append(output.Confirmed, jsonPackage{
			Name:     p.Name,
			Versions: p.Versions,
			Listed:   result.Matches[p.Name],
		})
	}

	for _, p := range result.Possible.Sorted() {
		output.Possible = append(output.Possible, jsonPackage{Name: p.Name, Versions: p.Versions})
	}

	for _, p := range skipped {
		output.Skipped = append(output.Skipped, jsonPackage{Name: p.Name, Versions: p.Versions})
	}

	return json.MarshalIndent(output, "", "  ")
}
