package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Cache provides local file-based caching for downloaded documents
type Cache struct {
	Fs  afero.Fs
	Dir string
	TTL time.Duration
}

// DefaultTTL is the default cache time-to-live
const DefaultTTL = 6 * time.Hour

// New creates a new cache under ~/.cache/<appName>
func New(fs afero.Fs, appName string, ttl time.Duration) (*Cache, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	return NewAt(fs, filepath.Join(homeDir, ".cache", appName), ttl)
}

// NewAt creates a new cache rooted at dir
func NewAt(fs afero.Fs, dir string, ttl time.Duration) (*Cache, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		Fs:  fs,
		Dir: dir,
		TTL: ttl,
	}, nil
}

// keyToFilename converts a URL or key to a safe filename
func (c *Cache) keyToFilename(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + ".cache"
}

// Path returns the full path to the cache file for a key
func (c *Cache) Path(key string) string {
	return filepath.Join(c.Dir, c.keyToFilename(key))
}

// Age returns how long ago the entry for key was written
func (c *Cache) Age(key string) (time.Duration, bool) {
	info, err := c.Fs.Stat(c.Path(key))
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}

// Get retrieves data from cache if it exists and is not expired
func (c *Cache) Get(key string) ([]byte, bool) {
	age, ok := c.Age(key)
	if !ok || age > c.TTL {
		return nil, false
	}

	data, err := afero.ReadFile(c.Fs, c.Path(key))
	if err != nil {
		return nil, false
	}

	return data, true
}

// Set stores data in the cache
func (c *Cache) Set(key string, data []byte) error {
	return afero.WriteFile(c.Fs, c.Path(key), data, 0644)
}

// Clear removes all cached files
func (c *Cache) Clear() error {
	entries, err := afero.ReadDir(c.Fs, c.Dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			if err := c.Fs.Remove(filepath.Join(c.Dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
