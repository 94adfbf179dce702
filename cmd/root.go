package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anchore/go-logger"
	"github.com/anchore/go-logger/adapter/logrus"
	"github.com/gookit/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ethanolivertroy/hulud-checker/internal/clients"
	"github.com/ethanolivertroy/hulud-checker/internal/config"
	"github.com/ethanolivertroy/hulud-checker/internal/log"
	"github.com/ethanolivertroy/hulud-checker/internal/models"
	"github.com/ethanolivertroy/hulud-checker/internal/reporter"
	"github.com/ethanolivertroy/hulud-checker/internal/scanner"
)

// ErrFindings is returned when affected packages were found and failing on
// findings is enabled. No message is printed for it.
var ErrFindings = errors.New("affected packages found")

// UsageError wraps command line parsing errors
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

var (
	flagConfig string
	flagNoFail bool
)

// fs is the filesystem every command reads from and writes to
var fs = afero.NewOsFs()

// v carries environment variables and bound flags into config.Load
var v = config.NewViper()

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hulud-checker",
	Short: "Check an npm lock file for packages affected by the Shai-Hulud v2 attack",
	Long: `hulud-checker scans a resolved npm lock file (package-lock.json or
npm-shrinkwrap.json) for packages affected by the Shai-Hulud v2 supply-chain
attack.

Two checks are run:
  - every installed package is matched by name against the published list of
    compromised packages;
  - for every other package the registry is asked when each installed version
    was published; versions published after the attack started are reported
    as possibly affected.

Packages whose registry metadata cannot be retrieved are reported as skipped.

Examples:
  # Scan package-lock.json in the current directory
  hulud-checker

  # Scan a specific lock file with 10 parallel registry queries
  hulud-checker -f ./app/package-lock.json -t 10

  # Query the registry over HTTP instead of the npm CLI
  hulud-checker --source registry

  # Output SARIF for GitHub Code Scanning
  hulud-checker --format sarif --output results.sarif

  # Don't fail on findings (exit 0 regardless)
  hulud-checker --no-fail`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	},
	SilenceErrors: true,
	RunE:          runCheck,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	defaults := models.DefaultConfig()
	flags := rootCmd.Flags()

	flags.StringP("json-lock-file", "f", "", "Lock file to scan (default: package-lock.json or npm-shrinkwrap.json in the current directory)")
	flags.IntP("threads-num", "t", defaults.Concurrency, "Number of registry queries to run in parallel")
	flags.String("source", defaults.Source, "Where publish dates come from: npm (npm CLI) or registry (HTTP)")
	flags.String("registry-url", defaults.RegistryURL, "Registry base URL used by the registry source")
	flags.String("attack-instant", defaults.AttackInstant, "Versions published after this RFC 3339 instant are reported")
	flags.Duration("query-timeout", defaults.QueryTimeout, "Timeout for a single registry query (0 disables)")
	flags.String("feed-url", defaults.FeedURL, "URL of the affected package list (CSV)")
	flags.String("feed-file", "", "Read the affected package list from a local CSV file instead")
	flags.Bool("no-cache", false, "Disable caching of the affected package list")
	flags.Bool("clear-cache", false, "Remove the cached affected package list before scanning")
	flags.String("format", defaults.OutputFormat, "Output format: terminal, json, sarif")
	flags.StringP("output", "o", "", "Output file path (default: stdout)")
	flags.BoolVar(&flagNoFail, "no-fail", false, "Don't exit with error code if affected packages are found")
	flags.StringVarP(&flagConfig, "config", "c", "", "Config file (default: ~/.config/hulud-checker/config.toml)")
	flags.CountP("verbose", "v", "Increase verbosity (-v = info, -vv = debug, -vvv = trace)")
	flags.BoolP("quiet", "q", false, "Suppress all logging output")
	flags.String("log-file", "", "Write logs to this file")

	bindings := map[string]string{
		"lock-file":      "json-lock-file",
		"concurrency":    "threads-num",
		"source":         "source",
		"registry-url":   "registry-url",
		"attack-instant": "attack-instant",
		"query-timeout":  "query-timeout",
		"feed-url":       "feed-url",
		"feed-file":      "feed-file",
		"no-cache":       "no-cache",
		"clear-cache":    "clear-cache",
		"format":         "format",
		"output":         "output",
		"log.verbosity":  "verbose",
		"log.quiet":      "quiet",
		"log.file":       "log-file",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("unable to bind flag %q: %v", flag, err))
		}
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})
}

func runCheck(cmd *cobra.Command, args []string) error {
	// past flag parsing, errors are not usage problems
	cmd.SilenceUsage = true

	cfg, err := config.Load(fs, v, flagConfig)
	if err != nil {
		return err
	}
	if flagNoFail {
		cfg.FailOnFindings = false
	}

	if err := setupLogger(cfg.Log); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	log.Debugf("config:\n%s", color.Magenta.Sprint(indent(strings.TrimSpace(config.String(cfg)), "  ")))

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}
	lockPath, err := scanner.ResolveLockFile(fs, cfg.LockFile, cwd)
	if err != nil {
		return err
	}

	registry, err := clients.NewRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize registry client: %w", err)
	}

	// Create scanner
	s, err := scanner.New(cfg, fs, scanner.NewFeedSource(cfg, fs), registry)
	if err != nil {
		return fmt.Errorf("failed to initialize scanner: %w", err)
	}

	// Run scan
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stop := reportProgress(ctx, s, 5*time.Second)
	result, err := s.Scan(ctx, lockPath)
	stop()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	// Generate report
	rep := reporter.Get(cfg.OutputFormat, cfg.OutputFile != "")
	output, err := rep.Report(result)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	// Write output
	if cfg.OutputFile != "" {
		if err := afero.WriteFile(fs, cfg.OutputFile, output, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", cfg.OutputFile)
	} else {
		fmt.Fprint(cmd.OutOrStdout(), string(output))
	}

	// Exit with error code if findings exist and not disabled
	if result.HasFindings() && cfg.FailOnFindings {
		return ErrFindings
	}

	return nil
}

// reportProgress logs how many packages have had their publish date checked
// until the returned function is called.
func reportProgress(ctx context.Context, s *scanner.Scanner, every time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				p := s.Progress()
				if p.Size() > 0 {
					log.WithFields("checked", p.Current(), "total", p.Size()).Info("publish date check in progress")
				}
			}
		}
	}()
	return func() { close(done) }
}

func setupLogger(cfg models.LogConfig) error {
	l, err := logrus.New(logrus.Config{
		EnableConsole: !cfg.Quiet,
		FileLocation:  cfg.FileLocation,
		Level:         levelFor(cfg.Verbosity),
	})
	if err != nil {
		return err
	}

	log.Set(l)
	return nil
}

func levelFor(verbosity int) logger.Level {
	switch {
	case verbosity <= 0:
		return logger.WarnLevel
	case verbosity == 1:
		return logger.InfoLevel
	case verbosity == 2:
		return logger.DebugLevel
	default:
		return logger.TraceLevel
	}
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
