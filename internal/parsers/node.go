package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

const treeMarker = "node_modules/"

var (
	// ErrMalformedPath is returned for a "packages" key that is not a
	// node_modules tree path. It means the lock file format is not supported.
	ErrMalformedPath = errors.New("malformed dependency path")

	// ErrMissingVersion is returned for a "packages" entry without a version.
	ErrMissingVersion = errors.New("missing version")
)

// NodeLockParser parses package-lock.json and npm-shrinkwrap.json files (v2/v3)
type NodeLockParser struct{}

// CanParse returns true for npm lock files
func (p *NodeLockParser) CanParse(filename string) bool {
	for _, name := range LockFileNames {
		if filename == name {
			return true
		}
	}
	return false
}

// packageLock represents the parts of package-lock.json we rely on
type packageLock struct {
	LockfileVersion int `json:"lockfileVersion"`
	Packages        map[string]struct {
		Version *string `json:"version"`
	} `json:"packages"`
}

// Parse extracts installed packages from lock file content
func (p *NodeLockParser) Parse(filepath string, content []byte) (models.Collection, error) {
	var lock packageLock
	if err := json.Unmarshal(content, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath, err)
	}

	if lock.Packages == nil {
		return nil, fmt.Errorf("%s has no \"packages\" field (lockfileVersion %d is not supported)", filepath, lock.LockfileVersion)
	}

	raw := make(map[string]string, len(lock.Packages))
	for path, entry := range lock.Packages {
		if path == "" {
			continue // root project
		}
		if entry.Version == nil {
			return nil, fmt.Errorf("%s: %q: %w", filepath, path, ErrMissingVersion)
		}
		raw[path] = *entry.Version
	}

	return Normalize(raw)
}

// Normalize turns a map of dependency tree paths to versions into a
// collection keyed by the real package name. Duplicate names are merged and
// their versions de-duplicated.
func Normalize(raw map[string]string) (models.Collection, error) {
	paths := make([]string, 0, len(raw))
	for path := range raw {
		paths = append(paths, path)
	}
	// map order is random; sorting keeps version lists reproducible
	sort.Strings(paths)

	packages := models.NewCollection()
	for _, path := range paths {
		if path == "" {
			continue
		}

		name, err := PackageName(path)
		if err != nil {
			return nil, err
		}
		packages.Add(name, raw[path])
	}

	return packages, nil
}

// PackageName extracts the package name from a path like
// "node_modules/lodash", "node_modules/@types/node" or
// "node_modules/a/node_modules/@scope/b". The name is whatever follows the
// last node_modules/ marker, scope included.
func PackageName(path string) (string, error) {
	idx := strings.LastIndex(path, treeMarker)
	if idx < 0 {
		return "", fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}

	name := path[idx+len(treeMarker):]
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}
	return name, nil
}
