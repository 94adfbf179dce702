package scanner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wagoodman/go-progress"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

func attackInstant(t *testing.T) time.Time {
	t.Helper()
	at, err := ParseAttackInstant(models.AttackInstant)
	require.NoError(t, err)
	return at
}

func TestParseAttackInstant(t *testing.T) {
	at, err := ParseAttackInstant(models.AttackInstant)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 11, 24, 3, 16, 26, 0, time.UTC), at.UTC())

	_, err = ParseAttackInstant("yesterday")
	require.Error(t, err)
}

func TestSortVersions(t *testing.T) {
	got := sortVersions([]string{"1.10.0", "1.2.0", "not-semver", "1.2.0-beta.1", "0.9.0", "1.2.0"})
	assert.Equal(t, []string{"0.9.0", "1.2.0-beta.1", "1.2.0", "1.2.0", "1.10.0", "not-semver"}, got)
}

func TestCheckPublishDate(t *testing.T) {
	tests := []struct {
		name     string
		view     models.RegistryView
		versions []string
		want     verdict
		wantErr  require.ErrorAssertionFunc
	}{
		{
			name:     "published after attack",
			view:     viewOf("2.0.0", "2025-11-24T05:00:00.000Z"),
			versions: []string{"2.0.0"},
			want:     verdictPossible,
		},
		{
			name:     "published before attack",
			view:     viewOf("2.0.0", "2024-01-01T00:00:00.000Z"),
			versions: []string{"2.0.0"},
			want:     verdictClean,
		},
		{
			name:     "published exactly at attack",
			view:     viewOf("2.0.0", models.AttackInstant),
			versions: []string{"2.0.0"},
			want:     verdictClean,
		},
		{
			name:     "one millisecond after attack",
			view:     viewOf("2.0.0", "2025-11-24T03:16:26.001Z"),
			versions: []string{"2.0.0"},
			want:     verdictPossible,
		},
		{
			name:     "offset timestamp after attack",
			view:     viewOf("2.0.0", "2025-11-24T04:16:27+01:00"),
			versions: []string{"2.0.0"},
			want:     verdictPossible,
		},
		{
			name:     "any version after attack",
			view:     viewOf("1.0.0", "2020-01-01T00:00:00.000Z", "1.1.0", "2025-12-01T00:00:00.000Z"),
			versions: []string{"1.0.0", "1.1.0"},
			want:     verdictPossible,
		},
		{
			name:     "missing timestamp skipped",
			view:     viewOf("1.0.0", "2020-01-01T00:00:00.000Z"),
			versions: []string{"1.0.0", "1.1.0"},
			want:     verdictClean,
		},
		{
			name:     "missing timestamp does not hide a later hit",
			view:     viewOf("1.1.0", "2025-12-01T00:00:00.000Z"),
			versions: []string{"1.0.0", "1.1.0"},
			want:     verdictPossible,
		},
		{
			name:     "no time data",
			view:     models.RegistryView{},
			versions: []string{"1.0.0"},
			want:     verdictClean,
		},
		{
			name:     "empty timestamp",
			view:     viewOf("1.0.0", ""),
			versions: []string{"1.0.0"},
			wantErr:  require.Error,
		},
		{
			name:     "malformed timestamp",
			view:     viewOf("1.0.0", "last tuesday"),
			versions: []string{"1.0.0"},
			wantErr:  require.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr == nil {
				tt.wantErr = require.NoError
			}
			pkg := models.InstalledPackage{Name: "pkg", Versions: tt.versions}

			got, err := checkPublishDate(tt.view, pkg, attackInstant(t))
			tt.wantErr(t, err)
			if err != nil {
				assert.ErrorIs(t, err, ErrMalformedTimestamp)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyByPublishDate(t *testing.T) {
	registry := &fakeRegistry{views: map[string]models.RegistryView{
		"@scope/pkg": viewOf("2.0.0", "2025-11-25T00:00:00.000Z"),
		"react":      viewOf("18.2.0", "2022-06-14T00:00:00.000Z"),
	}}

	packages := collectionOf("@scope/pkg", "2.0.0", "react", "18.2.0", "foo", "3.0.0")
	monitor := progress.NewManual(-1)

	remaining, possible, err := ClassifyByPublishDate(context.Background(), registry, packages, PublishDateOptions{
		Concurrency:   DefaultConcurrency,
		AttackInstant: attackInstant(t),
		Progress:      monitor,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"@scope/pkg"}, possible.Names())
	assert.Equal(t, []string{"foo", "react"}, remaining.Names())

	assert.True(t, remaining["foo"].SkippedScan)
	assert.False(t, remaining["react"].SkippedScan)
	assert.False(t, possible["@scope/pkg"].SkippedScan)

	assert.Equal(t, int64(3), monitor.Current())
	assert.Equal(t, int32(3), registry.calls.Load())
}

func TestClassifyByPublishDate_BoundedConcurrency(t *testing.T) {
	tests := []struct {
		concurrency int
	}{
		{concurrency: 1},
		{concurrency: 3},
		{concurrency: 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit %d", tt.concurrency), func(t *testing.T) {
			registry := &fakeRegistry{views: map[string]models.RegistryView{}, delay: 10 * time.Millisecond}
			packages := models.NewCollection()
			for i := 0; i < 10; i++ {
				name := fmt.Sprintf("pkg-%02d", i)
				packages.Add(name, "1.0.0")
				registry.views[name] = viewOf("1.0.0", "2020-01-01T00:00:00.000Z")
			}

			remaining, possible, err := ClassifyByPublishDate(context.Background(), registry, packages, PublishDateOptions{
				Concurrency:   tt.concurrency,
				AttackInstant: attackInstant(t),
			})
			require.NoError(t, err)

			assert.Len(t, remaining, 10)
			assert.Empty(t, possible)
			assert.Equal(t, int32(10), registry.calls.Load())
			assert.LessOrEqual(t, registry.maxInFlight.Load(), int32(tt.concurrency))
			if tt.concurrency == 1 {
				assert.Equal(t, int32(1), registry.maxInFlight.Load())
			}
		})
	}
}

func TestClassifyByPublishDate_InvalidConcurrency(t *testing.T) {
	_, _, err := ClassifyByPublishDate(context.Background(), &fakeRegistry{}, collectionOf("a", "1.0.0"), PublishDateOptions{
		Concurrency:   0,
		AttackInstant: attackInstant(t),
	})
	require.Error(t, err)
}

func TestClassifyByPublishDate_MalformedTimestampStopsLaunching(t *testing.T) {
	registry := &fakeRegistry{views: map[string]models.RegistryView{
		"a-broken": viewOf("1.0.0", "not a time"),
		"b-fine":   viewOf("1.0.0", "2020-01-01T00:00:00.000Z"),
		"c-fine":   viewOf("1.0.0", "2020-01-01T00:00:00.000Z"),
	}}

	packages := collectionOf("a-broken", "1.0.0", "b-fine", "1.0.0", "c-fine", "1.0.0")

	_, _, err := ClassifyByPublishDate(context.Background(), registry, packages, PublishDateOptions{
		Concurrency:   1,
		AttackInstant: attackInstant(t),
	})
	require.ErrorIs(t, err, ErrMalformedTimestamp)

	// the failing package is first in name order; nothing is launched after it
	assert.Equal(t, int32(1), registry.calls.Load())
}

func TestClassifyByPublishDate_EmptyCollection(t *testing.T) {
	registry := &fakeRegistry{}
	remaining, possible, err := ClassifyByPublishDate(context.Background(), registry, models.NewCollection(), PublishDateOptions{
		Concurrency:   2,
		AttackInstant: attackInstant(t),
	})
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Empty(t, possible)
	assert.Zero(t, registry.calls.Load())
}

func TestClassifyByPublishDate_Cancelled(t *testing.T) {
	registry := &fakeRegistry{views: map[string]models.RegistryView{}, delay: 50 * time.Millisecond}
	packages := models.NewCollection()
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("pkg-%02d", i)
		packages.Add(name, "1.0.0")
		registry.views[name] = viewOf("1.0.0", "2020-01-01T00:00:00.000Z")
	}

	attack := attackInstant(t)
	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	finished := make(chan struct{})
	var (
		remaining models.Collection
		possible  models.Collection
		err       error
	)
	go func() {
		defer close(finished)
		remaining, possible, err = ClassifyByPublishDate(ctx, registry, packages, PublishDateOptions{
			Concurrency:   2,
			AttackInstant: attack,
		})
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("publish date classification did not return after the context expired")
	}

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, registry.calls.Load(), int32(10))

	// nothing is lost: every package is still accounted for
	assert.Len(t, remaining, 10)
	assert.Empty(t, possible)
}
