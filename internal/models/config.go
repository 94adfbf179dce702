package models

import (
	"fmt"
	"net/url"
	"time"
)

// AttackInstant is when the Shai-Hulud v2 campaign was first detected.
// Versions published strictly after it are treated as suspect.
const AttackInstant = "2025-11-24T03:16:26.000Z"

// Registry sources
const (
	SourceNpmCLI   = "npm"
	SourceRegistry = "registry"
)

// Output formats
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
	FormatSARIF    = "sarif"
)

// Config holds configuration for the scanner
type Config struct {
	// Lock file to scan; empty means auto-discovery in the working directory
	LockFile string `toml:"lock-file" mapstructure:"lock-file"`

	// Publish-date check settings
	Concurrency   int           `toml:"concurrency" mapstructure:"concurrency"`
	Source        string        `toml:"source" mapstructure:"source"` // "npm", "registry"
	RegistryURL   string        `toml:"registry-url" mapstructure:"registry-url"`
	AttackInstant string        `toml:"attack-instant" mapstructure:"attack-instant"`
	QueryTimeout  time.Duration `toml:"query-timeout" mapstructure:"query-timeout"`

	// Feed settings
	FeedURL    string        `toml:"feed-url" mapstructure:"feed-url"`
	FeedFile   string        `toml:"feed-file" mapstructure:"feed-file"`
	NoCache    bool          `toml:"no-cache" mapstructure:"no-cache"`
	ClearCache bool          `toml:"clear-cache" mapstructure:"clear-cache"`
	CacheTTL   time.Duration `toml:"cache-ttl" mapstructure:"cache-ttl"`

	// Output settings
	OutputFormat   string `toml:"format" mapstructure:"format"` // "terminal", "json", "sarif"
	OutputFile     string `toml:"output" mapstructure:"output"`
	FailOnFindings bool   `toml:"fail-on-findings" mapstructure:"fail-on-findings"`

	Log LogConfig `toml:"log" mapstructure:"log"`
}

// LogConfig controls the logger set up by the CLI
type LogConfig struct {
	Verbosity    int    `toml:"verbosity" mapstructure:"verbosity"`
	Quiet        bool   `toml:"quiet" mapstructure:"quiet"`
	FileLocation string `toml:"file" mapstructure:"file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Concurrency:    5,
		Source:         SourceNpmCLI,
		RegistryURL:    "https://registry.npmjs.org",
		AttackInstant:  AttackInstant,
		QueryTimeout:   60 * time.Second,
		FeedURL:        "https://github.com/wiz-sec-public/wiz-research-iocs/raw/refs/heads/main/reports/shai-hulud-2-packages.csv",
		CacheTTL:       6 * time.Hour,
		OutputFormat:   FormatTerminal,
		FailOnFindings: true,
	}
}

// Validate checks the configuration for values the scanner cannot run with
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("threads-num must be at least 1, got %d", c.Concurrency)
	}

	switch c.Source {
	case SourceNpmCLI:
	case SourceRegistry:
		if c.RegistryURL == "" {
			return fmt.Errorf("registry-url is required when source is %q", SourceRegistry)
		}
		if _, err := url.ParseRequestURI(c.RegistryURL); err != nil {
			return fmt.Errorf("invalid registry-url %q: %w", c.RegistryURL, err)
		}
	default:
		return fmt.Errorf("unknown source %q (expected %q or %q)", c.Source, SourceNpmCLI, SourceRegistry)
	}

	switch c.OutputFormat {
	case FormatTerminal, FormatJSON, FormatSARIF:
	default:
		return fmt.Errorf("unknown format %q (expected terminal, json or sarif)", c.OutputFormat)
	}

	if _, err := time.Parse(time.RFC3339Nano, c.AttackInstant); err != nil {
		return fmt.Errorf("invalid attack-instant %q: %w", c.AttackInstant, err)
	}

	if c.QueryTimeout < 0 {
		return fmt.Errorf("query-timeout must not be negative, got %s", c.QueryTimeout)
	}

	if c.FeedFile == "" && c.FeedURL == "" {
		return fmt.Errorf("either feed-url or feed-file must be set")
	}

	return nil
}
