package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/wagoodman/go-progress"

	"github.com/ethanolivertroy/hulud-checker/internal/cache"
	"github.com/ethanolivertroy/hulud-checker/internal/clients"
	"github.com/ethanolivertroy/hulud-checker/internal/log"
	"github.com/ethanolivertroy/hulud-checker/internal/models"
	"github.com/ethanolivertroy/hulud-checker/internal/parsers"
)

// ErrNoLockFile is returned when no lock file was given and none was found
var ErrNoLockFile = errors.New("no lock file found")

// FeedSource provides the list of compromised packages
type FeedSource interface {
	FetchFeed(ctx context.Context) (models.Feed, error)
}

type fileFeed struct {
	fs   afero.Fs
	path string
}

func (f fileFeed) FetchFeed(_ context.Context) (models.Feed, error) {
	return clients.LoadFeedFile(f.fs, f.path)
}

// NewFeedSource returns the feed configured by config: a local file when
// FeedFile is set, otherwise the remote feed behind the on-disk cache.
func NewFeedSource(config *models.Config, fs afero.Fs) FeedSource {
	if config.FeedFile != "" {
		return fileFeed{fs: fs, path: config.FeedFile}
	}

	var c *cache.Cache
	if !config.NoCache {
		var err error
		c, err = cache.New(fs, "hulud-checker", config.CacheTTL)
		if err != nil {
			// Non-fatal: continue without cache
			log.WithFields("error", err).Debug("feed cache unavailable")
			c = nil
		}
	}
	return newFeedClient(config, c)
}

func newFeedClient(config *models.Config, c *cache.Cache) *clients.FeedClient {
	if c != nil && config.ClearCache {
		if err := c.Clear(); err != nil {
			log.WithFields("dir", c.Dir, "error", err).Warn("unable to clear the feed cache")
		} else {
			log.WithFields("dir", c.Dir).Info("cleared the feed cache")
		}
	}
	return clients.NewFeedClient(config.FeedURL, c)
}

// Scanner orchestrates the lock file scan
type Scanner struct {
	config   *models.Config
	fs       afero.Fs
	parsers  []parsers.Parser
	feed     FeedSource
	registry clients.Registry
	progress *progress.Manual
}

// New creates a new Scanner with the given configuration
func New(config *models.Config, fs afero.Fs, feed FeedSource, registry clients.Registry) (*Scanner, error) {
	if feed == nil || registry == nil {
		return nil, errors.New("scanner requires a feed source and a registry")
	}
	if config.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", config.Concurrency)
	}

	return &Scanner{
		config:   config,
		fs:       fs,
		parsers:  parsers.GetAllParsers(),
		feed:     feed,
		registry: registry,
		progress: progress.NewManual(-1),
	}, nil
}

// Progress tracks the publish-date phase of a running scan
func (s *Scanner) Progress() *progress.Manual {
	return s.progress
}

// Scan performs the full scan of the lock file at lockPath
func (s *Scanner) Scan(ctx context.Context, lockPath string) (*models.ScanResult, error) {
	attack, err := ParseAttackInstant(s.config.AttackInstant)
	if err != nil {
		return nil, err
	}

	// Step 1: Parse and normalize the lock file
	packages, err := s.parseLockFile(lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	total := len(packages)

	// Step 2: Fetch the compromised package list
	feed, err := s.feed.FetchFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the list of affected packages: %w", err)
	}

	log.WithFields(
		"concurrency", s.config.Concurrency,
		"installed", humanize.Comma(int64(total)),
		"affected", humanize.Comma(int64(len(feed))),
	).Info("starting scan")

	// Step 3: Name match against the feed
	remaining, confirmed := ClassifyKnown(feed, packages)

	// Step 4: Publish date heuristic on everything else
	remaining, possible, err := ClassifyByPublishDate(ctx, s.registry, remaining, PublishDateOptions{
		Concurrency:   s.config.Concurrency,
		AttackInstant: attack,
		Progress:      s.progress,
	})
	if err != nil {
		return nil, fmt.Errorf("publish date check failed: %w", err)
	}

	result := &models.ScanResult{
		LockFile:      lockPath,
		Confirmed:     confirmed,
		Possible:      possible,
		Remaining:     remaining,
		Matches:       MatchedVersions(feed, confirmed),
		AttackInstant: attack,
		FeedSize:      len(feed),
		TotalPackages: total,
		Concurrency:   s.config.Concurrency,
	}

	log.WithFields(
		"confirmed", len(result.Confirmed),
		"possible", len(result.Possible),
		"skipped", len(result.Skipped()),
	).Info("scan complete")

	return result, nil
}

// parseLockFile reads the lock file and hands it to the matching parser
func (s *Scanner) parseLockFile(path string) (models.Collection, error) {
	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(path)
	for _, parser := range s.parsers {
		if parser.CanParse(filename) {
			return parser.Parse(path, content)
		}
	}

	// explicitly named files are parsed as npm lock files whatever their name
	log.WithFields("path", path).Debug("unrecognized lock file name, assuming npm lock file format")
	return (&parsers.NodeLockParser{}).Parse(path, content)
}

// ResolveLockFile returns explicit when set and present, otherwise the first
// known lock file name found in dir.
func ResolveLockFile(fs afero.Fs, explicit, dir string) (string, error) {
	if explicit != "" {
		info, err := fs.Stat(explicit)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("lock file %q does not exist", explicit)
			}
			return "", fmt.Errorf("failed to stat lock file %s: %w", explicit, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("lock file %q is a directory", explicit)
		}
		return explicit, nil
	}

	for _, name := range parsers.LockFileNames {
		candidate := filepath.Join(dir, name)
		if ok, _ := afero.Exists(fs, candidate); ok {
			log.WithFields("path", candidate).Debug("found lock file")
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w in %s (looked for %v); pass one with --json-lock-file", ErrNoLockFile, dir, parsers.LockFileNames)
}
