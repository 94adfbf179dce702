package scanner

import (
	"github.com/ethanolivertroy/hulud-checker/internal/log"
	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// ClassifyKnown moves every installed package whose name appears in the feed
// out of packages and into confirmed. The match is on the name alone; the
// version comparison is logged for diagnostics but does not change the
// outcome. packages is consumed and returned as remaining.
func ClassifyKnown(feed models.Feed, packages models.Collection) (remaining, confirmed models.Collection) {
	remaining = packages
	if remaining == nil {
		remaining = models.NewCollection()
	}
	confirmed = models.NewCollection()

	for _, entry := range feed.Entries() {
		pkg, ok := remaining.Get(entry.Package)
		if !ok {
			log.WithFields("package", entry.Package).Trace("affected package not installed")
			continue
		}

		for _, version := range pkg.Versions {
			log.WithFields("package", entry.Package, "version", version, "listed", entry.Versions.Has(version)).
				Debug("affected package is installed")
		}

		remaining.Move(entry.Package, confirmed)
	}

	return remaining, confirmed
}

// MatchedVersions returns, for each confirmed package, the installed versions
// the feed names explicitly. Packages with no exact version hit map to an
// empty slice.
func MatchedVersions(feed models.Feed, confirmed models.Collection) map[string][]string {
	matches := make(map[string][]string, len(confirmed))
	for _, pkg := range confirmed.Sorted() {
		hits := []string{}
		for _, version := range pkg.Versions {
			if feed.IsVulnerable(pkg.Name, version) {
				hits = append(hits, version)
			}
		}
		matches[pkg.Name] = hits
	}
	return matches
}
