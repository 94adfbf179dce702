package models

import "time"

// ScanResult is the final classification handed to the reporters. Every
// package of the lock file ends up in exactly one of the three collections.
type ScanResult struct {
	LockFile string

	// Confirmed holds packages whose name appears in the feed.
	Confirmed Collection
	// Possible holds packages with a version published after the attack.
	Possible Collection
	// Remaining holds everything else, including skipped packages.
	Remaining Collection

	// Matches lists, per confirmed package, the installed versions that are
	// explicitly named in the feed.
	Matches map[string][]string

	// AttackInstant is the cutoff the publish-date check compared against.
	AttackInstant time.Time

	FeedSize      int
	TotalPackages int
	Concurrency   int
}

// Skipped returns the packages whose publish-date check could not run.
func (r ScanResult) Skipped() []*InstalledPackage {
	var skipped []*InstalledPackage
	for _, p := range r.Remaining.Sorted() {
		if p.SkippedScan {
			skipped = append(skipped, p)
		}
	}
	return skipped
}

// HasFindings returns true if any package was flagged by either check
func (r ScanResult) HasFindings() bool {
	return len(r.Confirmed) > 0 || len(r.Possible) > 0
}

// AttackInstantString renders the cutoff the way the registry reports
// publish times. A zero value falls back to the default instant.
func (r ScanResult) AttackInstantString() string {
	if r.AttackInstant.IsZero() {
		return AttackInstant
	}
	return r.AttackInstant.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
