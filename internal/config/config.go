// Package config assembles the scanner configuration from defaults, an
// optional TOML file, HULUD_* environment variables and command line flags,
// in increasing order of precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/ethanolivertroy/hulud-checker/internal/log"
	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

const (
	appName   = "hulud-checker"
	envPrefix = "HULUD"
)

// overlays maps each viper key to the field it sets. Only keys the user
// actually set (flag changed, env var present) are applied.
var overlays = []struct {
	key   string
	apply func(v *viper.Viper, key string, c *models.Config)
}{
	{"lock-file", func(v *viper.Viper, k string, c *models.Config) { c.LockFile = v.GetString(k) }},
	{"concurrency", func(v *viper.Viper, k string, c *models.Config) { c.Concurrency = v.GetInt(k) }},
	{"source", func(v *viper.Viper, k string, c *models.Config) { c.Source = v.GetString(k) }},
	{"registry-url", func(v *viper.Viper, k string, c *models.Config) { c.RegistryURL = v.GetString(k) }},
	{"attack-instant", func(v *viper.Viper, k string, c *models.Config) { c.AttackInstant = v.GetString(k) }},
	{"query-timeout", func(v *viper.Viper, k string, c *models.Config) { c.QueryTimeout = v.GetDuration(k) }},
	{"feed-url", func(v *viper.Viper, k string, c *models.Config) { c.FeedURL = v.GetString(k) }},
	{"feed-file", func(v *viper.Viper, k string, c *models.Config) { c.FeedFile = v.GetString(k) }},
	{"no-cache", func(v *viper.Viper, k string, c *models.Config) { c.NoCache = v.GetBool(k) }},
	{"clear-cache", func(v *viper.Viper, k string, c *models.Config) { c.ClearCache = v.GetBool(k) }},
	{"cache-ttl", func(v *viper.Viper, k string, c *models.Config) { c.CacheTTL = v.GetDuration(k) }},
	{"format", func(v *viper.Viper, k string, c *models.Config) { c.OutputFormat = v.GetString(k) }},
	{"output", func(v *viper.Viper, k string, c *models.Config) { c.OutputFile = v.GetString(k) }},
	{"fail-on-findings", func(v *viper.Viper, k string, c *models.Config) { c.FailOnFindings = v.GetBool(k) }},
	{"log.verbosity", func(v *viper.Viper, k string, c *models.Config) { c.Log.Verbosity = v.GetInt(k) }},
	{"log.quiet", func(v *viper.Viper, k string, c *models.Config) { c.Log.Quiet = v.GetBool(k) }},
	{"log.file", func(v *viper.Viper, k string, c *models.Config) { c.Log.FileLocation = v.GetString(k) }},
}

// NewViper returns a viper instance reading HULUD_* environment variables.
// Flags are bound to it by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultPath returns ~/.config/hulud-checker/config.toml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

// Load builds the effective configuration. An explicit path must exist; when
// path is empty the default location is used if a file is present there.
func Load(fs afero.Fs, v *viper.Viper, path string) (*models.Config, error) {
	cfg := models.DefaultConfig()

	if path == "" {
		if def := DefaultPath(); def != "" {
			if ok, _ := afero.Exists(fs, def); ok {
				path = def
			}
		}
	}

	if path != "" {
		if err := decodeFile(fs, path, cfg); err != nil {
			return nil, err
		}
	}

	if v != nil {
		for _, o := range overlays {
			if v.IsSet(o.key) {
				o.apply(v, o.key, cfg)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decodeFile(fs afero.Fs, path string, cfg *models.Config) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for _, key := range md.Undecoded() {
		log.WithFields("path", path, "key", key.String()).Warn("ignoring unknown config key")
	}
	log.WithFields("path", path).Debug("loaded config file")

	return nil
}

// String renders the configuration as TOML
func String(cfg *models.Config) string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Sprintf("%+v", *cfg)
	}
	return buf.String()
}
