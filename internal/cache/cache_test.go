package cache

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c, err := NewAt(afero.NewMemMapFs(), "/cache/hulud-checker", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, c.TTL)

	_, ok := c.Get("https://example.test/feed.csv")
	assert.False(t, ok)

	require.NoError(t, c.Set("https://example.test/feed.csv", []byte("Package,Version\n")))

	data, ok := c.Get("https://example.test/feed.csv")
	require.True(t, ok)
	assert.Equal(t, "Package,Version\n", string(data))

	_, ok = c.Get("https://example.test/other.csv")
	assert.False(t, ok)
}

func TestCache_Expired(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := NewAt(fs, "/cache", time.Hour)
	require.NoError(t, err)

	require.NoError(t, c.Set("key", []byte("data")))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, fs.Chtimes(c.Path("key"), old, old))

	age, ok := c.Age("key")
	require.True(t, ok)
	assert.Greater(t, age, time.Hour)

	_, ok = c.Get("key")
	assert.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c, err := NewAt(afero.NewMemMapFs(), "/cache", time.Hour)
	require.NoError(t, err)

	require.NoError(t, c.Set("a", []byte("1")))
	require.NoError(t, c.Set("b", []byte("2")))
	require.NoError(t, c.Clear())

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}
