package parsers

import "github.com/ethanolivertroy/hulud-checker/internal/models"

// Parser is the interface for lock file parsers
type Parser interface {
	// CanParse returns true if this parser can handle the given filename
	CanParse(filename string) bool

	// Parse extracts the installed packages from the file content
	Parse(filepath string, content []byte) (models.Collection, error)
}

// GetAllParsers returns all available parsers
func GetAllParsers() []Parser {
	return []Parser{
		&NodeLockParser{},
	}
}

// LockFileNames lists the lock files looked for during auto-discovery, in
// order of preference.
var LockFileNames = []string{"package-lock.json", "npm-shrinkwrap.json"}
