package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

func collectionOf(pairs ...string) models.Collection {
	c := models.NewCollection()
	for i := 0; i+1 < len(pairs); i += 2 {
		c.Add(pairs[i], pairs[i+1])
	}
	return c
}

func TestClassifyKnown(t *testing.T) {
	tests := []struct {
		name          string
		feed          models.Feed
		packages      models.Collection
		wantConfirmed []string
		wantRemaining []string
	}{
		{
			name:          "empty feed",
			feed:          models.Feed{},
			packages:      collectionOf("left-pad", "1.0.0", "react", "18.2.0"),
			wantConfirmed: []string{},
			wantRemaining: []string{"left-pad", "react"},
		},
		{
			name:          "name match moves package",
			packages:      collectionOf("left-pad", "1.0.0", "react", "18.2.0"),
			wantConfirmed: []string{"left-pad"},
			wantRemaining: []string{"react"},
		},
		{
			name:          "unlisted version still confirmed",
			packages:      collectionOf("left-pad", "9.9.9"),
			wantConfirmed: []string{"left-pad"},
			wantRemaining: []string{},
		},
		{
			name:          "feed entry not installed",
			packages:      collectionOf("react", "18.2.0"),
			wantConfirmed: []string{},
			wantRemaining: []string{"react"},
		},
		{
			name:          "nothing installed",
			packages:      nil,
			wantConfirmed: []string{},
			wantRemaining: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := tt.feed
			if feed == nil {
				feed = models.Feed{}
				feed.Add("left-pad", "1.0.0", "1.0.1")
				feed.Add("@ctrl/tinycolor", "4.1.1")
			}

			remaining, confirmed := ClassifyKnown(feed, tt.packages)
			require.NotNil(t, remaining)
			require.NotNil(t, confirmed)
			assert.Equal(t, tt.wantConfirmed, confirmed.Names())
			assert.Equal(t, tt.wantRemaining, remaining.Names())
		})
	}
}

func TestClassifyKnown_MovesLiveEntry(t *testing.T) {
	feed := models.Feed{}
	feed.Add("left-pad", "1.0.0")

	packages := collectionOf("left-pad", "1.0.0", "left-pad", "1.3.0")
	entry := packages["left-pad"]

	_, confirmed := ClassifyKnown(feed, packages)
	assert.Same(t, entry, confirmed["left-pad"])
	assert.Equal(t, []string{"1.0.0", "1.3.0"}, confirmed["left-pad"].Versions)
	assert.False(t, confirmed["left-pad"].SkippedScan)
}

func TestMatchedVersions(t *testing.T) {
	feed := models.Feed{}
	feed.Add("left-pad", "1.0.0", "1.0.1")
	feed.Add("debug", "4.4.2")

	confirmed := collectionOf("left-pad", "1.0.1", "left-pad", "1.3.0", "debug", "4.3.4")

	got := MatchedVersions(feed, confirmed)
	assert.Equal(t, map[string][]string{
		"left-pad": {"1.0.1"},
		"debug":    {},
	}, got)
}
