package models

import (
	"sort"
	"strings"
)

// InstalledPackage is one package name from a lock file together with every
// version of it that is installed somewhere in the dependency tree.
type InstalledPackage struct {
	Name     string
	Versions []string

	// SkippedScan is set when registry metadata could not be retrieved for
	// the package, so the publish-date check never ran for it.
	SkippedScan bool
}

// String returns a human-readable representation
func (p InstalledPackage) String() string {
	return p.Name + "@" + strings.Join(p.Versions, ",")
}

// HasVersion reports whether v is one of the installed versions (exact match).
func (p InstalledPackage) HasVersion(v string) bool {
	for _, installed := range p.Versions {
		if installed == v {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no memory with p.
func (p *InstalledPackage) Clone() *InstalledPackage {
	c := *p
	c.Versions = append([]string(nil), p.Versions...)
	return &c
}

// Collection maps a package name to its installed package. A package lives in
// exactly one collection at a time; moving it between collections is a
// remove-then-insert of the same pointer.
type Collection map[string]*InstalledPackage

// NewCollection returns an empty collection.
func NewCollection() Collection {
	return make(Collection)
}

// Add records version for name, creating the entry when needed. Versions
// already present are ignored so the list stays de-duplicated in first-seen
// order.
func (c Collection) Add(name, version string) {
	if p, ok := c[name]; ok {
		if !p.HasVersion(version) {
			p.Versions = append(p.Versions, version)
		}
		return
	}
	c[name] = &InstalledPackage{Name: name, Versions: []string{version}}
}

// Get returns the live entry for name.
func (c Collection) Get(name string) (*InstalledPackage, bool) {
	p, ok := c[name]
	return p, ok
}

// Remove deletes name and hands the entry back to the caller.
func (c Collection) Remove(name string) (*InstalledPackage, bool) {
	p, ok := c[name]
	if ok {
		delete(c, name)
	}
	return p, ok
}

// Move transfers the entry for name into dst. It returns false when name is
// not (or no longer) part of c.
func (c Collection) Move(name string, dst Collection) bool {
	p, ok := c.Remove(name)
	if !ok {
		return false
	}
	dst[name] = p
	return true
}

// Names returns the package names in lexical order.
func (c Collection) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sorted returns the entries ordered by name.
func (c Collection) Sorted() []*InstalledPackage {
	pkgs := make([]*InstalledPackage, 0, len(c))
	for _, name := range c.Names() {
		pkgs = append(pkgs, c[name])
	}
	return pkgs
}
