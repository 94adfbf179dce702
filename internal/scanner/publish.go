package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/wagoodman/go-progress"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/semaphore"

	"github.com/ethanolivertroy/hulud-checker/internal/clients"
	"github.com/ethanolivertroy/hulud-checker/internal/log"
	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// DefaultConcurrency is the number of registry queries allowed in flight
const DefaultConcurrency = 5

// ErrMalformedTimestamp is returned when the registry reports a publish time
// that is not a valid RFC 3339 instant. It aborts the scan.
var ErrMalformedTimestamp = errors.New("malformed publish timestamp")

type verdict int

const (
	verdictClean verdict = iota
	verdictPossible
	verdictSkipped
)

func (v verdict) String() string {
	switch v {
	case verdictPossible:
		return "possibly vulnerable"
	case verdictSkipped:
		return "skipped"
	default:
		return "clean"
	}
}

// PublishDateOptions configures ClassifyByPublishDate
type PublishDateOptions struct {
	// Concurrency bounds the number of registry queries in flight. Must be >= 1.
	Concurrency int
	// AttackInstant is the cutoff; versions published strictly after it are flagged.
	AttackInstant time.Time
	// Progress, when set, is sized to the number of packages and incremented
	// once per finished package.
	Progress *progress.Manual
}

// ParseAttackInstant parses an RFC 3339 instant such as models.AttackInstant
func ParseAttackInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid attack instant %q: %w", s, err)
	}
	return t, nil
}

// sortVersions orders versions by semantic version. Versions that are not
// valid semver sort after valid ones, by string.
func sortVersions(versions []string) []string {
	sorted := append([]string(nil), versions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := "v"+sorted[i], "v"+sorted[j]
		va, vb := semver.IsValid(a), semver.IsValid(b)
		switch {
		case va && vb:
			if c := semver.Compare(a, b); c != 0 {
				return c < 0
			}
			return sorted[i] < sorted[j]
		case va != vb:
			return va
		default:
			return sorted[i] < sorted[j]
		}
	})
	return sorted
}

// checkPublishDate reports whether any installed version of pkg was published
// strictly after attack. Versions without a publish time are skipped.
func checkPublishDate(view models.RegistryView, pkg models.InstalledPackage, attack time.Time) (verdict, error) {
	for _, version := range sortVersions(pkg.Versions) {
		raw, ok := view.PublishedAt(version)
		if !ok {
			log.WithFields("package", pkg.Name, "version", version).Warn("no publish time for installed version")
			continue
		}

		published, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return verdictClean, fmt.Errorf("%w: %s@%s: %q", ErrMalformedTimestamp, pkg.Name, version, raw)
		}

		after := published.After(attack)
		log.WithFields("package", pkg.Name, "version", version, "published", raw, "after", after).Trace("compared publish time")
		if after {
			return verdictPossible, nil
		}
	}
	return verdictClean, nil
}

type publishResult struct {
	name    string
	verdict verdict
	err     error
}

// ClassifyByPublishDate queries the registry for every package and moves the
// ones with a version published after the attack instant into possible.
// Packages whose metadata cannot be retrieved stay in remaining with
// SkippedScan set. A malformed timestamp stops new queries from starting;
// queries already running finish and every such error is returned.
func ClassifyByPublishDate(ctx context.Context, registry clients.Registry, packages models.Collection, opts PublishDateOptions) (remaining, possible models.Collection, err error) {
	if opts.Concurrency < 1 {
		return nil, nil, fmt.Errorf("concurrency must be at least 1, got %d", opts.Concurrency)
	}

	remaining = packages
	if remaining == nil {
		remaining = models.NewCollection()
	}
	possible = models.NewCollection()

	// snapshot once; tasks own these copies while the aggregator owns the live entries
	tasks := make([]models.InstalledPackage, 0, len(remaining))
	for _, p := range remaining.Sorted() {
		tasks = append(tasks, *p.Clone())
	}
	if opts.Progress != nil {
		opts.Progress.SetTotal(int64(len(tasks)))
	}

	log.WithFields("packages", len(tasks), "concurrency", opts.Concurrency).Info("checking publish dates")

	results := make(chan publishResult)
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(opts.Concurrency))

	var errs error
	done := make(chan struct{})

	// single owner of remaining and possible
	go func() {
		defer close(done)
		for res := range results {
			switch {
			case res.err != nil:
				errs = multierror.Append(errs, res.err)
			case res.verdict == verdictSkipped:
				if p, ok := remaining.Get(res.name); ok {
					p.SkippedScan = true
				}
			case res.verdict == verdictPossible:
				remaining.Move(res.name, possible)
			}
			if opts.Progress != nil {
				opts.Progress.Increment()
			}
		}
	}()

	var failed bool
	var failedLock sync.Mutex
	hasFailed := func() bool {
		failedLock.Lock()
		defer failedLock.Unlock()
		return failed
	}

	for _, pkg := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- publishResult{name: pkg.Name, err: err}
			break
		}
		if hasFailed() {
			sem.Release(1)
			log.Error("publish date check failed, waiting for running queries to finish...")
			break
		}

		wg.Add(1)
		go func(pkg models.InstalledPackage) {
			defer sem.Release(1)
			defer wg.Done()

			res := publishResult{name: pkg.Name}
			res.verdict, res.err = queryPackage(ctx, registry, pkg, opts.AttackInstant)
			if res.err != nil {
				failedLock.Lock()
				failed = true
				failedLock.Unlock()
			}
			results <- res
		}(pkg)
	}

	log.Trace("all publish date queries started, waiting for completion...")
	wg.Wait()
	close(results)
	<-done

	if opts.Progress != nil {
		opts.Progress.SetCompleted()
	}

	if errs != nil {
		return remaining, possible, errs
	}
	return remaining, possible, nil
}

func queryPackage(ctx context.Context, registry clients.Registry, pkg models.InstalledPackage, attack time.Time) (verdict, error) {
	log.WithFields("package", pkg.Name).Debug("querying registry")

	view, err := registry.View(ctx, pkg.Name)
	if err != nil {
		log.WithFields("package", pkg.Name, "error", err).Warn("unable to query registry, skipping package")
		return verdictSkipped, nil
	}

	v, err := checkPublishDate(view, pkg, attack)
	if err != nil {
		return v, err
	}
	log.WithFields("package", pkg.Name, "verdict", v).Debug("publish date check finished")
	return v, nil
}
