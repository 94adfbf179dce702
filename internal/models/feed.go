package models

import (
	"sort"

	"github.com/scylladb/go-set/strset"
)

// FeedEntry is one row of the compromised package feed.
type FeedEntry struct {
	Package  string
	Versions *strset.Set
}

// Feed maps a compromised package name to the set of its known-bad versions.
// It is fetched once per scan and never modified afterwards.
type Feed map[string]*strset.Set

// Add merges versions into the entry for name.
func (f Feed) Add(name string, versions ...string) {
	set, ok := f[name]
	if !ok {
		set = strset.New()
		f[name] = set
	}
	set.Add(versions...)
}

// Entries returns the feed rows ordered by package name.
func (f Feed) Entries() []FeedEntry {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]FeedEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, FeedEntry{Package: name, Versions: f[name]})
	}
	return entries
}

// IsVulnerable reports whether version of name is listed in the feed.
// Matching is exact and case-sensitive.
func (f Feed) IsVulnerable(name, version string) bool {
	set, ok := f[name]
	return ok && set.Has(version)
}
