package scanner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethanolivertroy/hulud-checker/internal/clients"
	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// fakeRegistry serves canned views and records how many queries overlap
type fakeRegistry struct {
	views map[string]models.RegistryView
	delay time.Duration

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeRegistry) View(ctx context.Context, name string) (models.RegistryView, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		seen := f.maxInFlight.Load()
		if cur <= seen || f.maxInFlight.CompareAndSwap(seen, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return models.RegistryView{}, fmt.Errorf("%w: %v", clients.ErrUnavailable, ctx.Err())
		}
	}

	view, ok := f.views[name]
	if !ok {
		return models.RegistryView{}, fmt.Errorf("%w: %s not found", clients.ErrUnavailable, name)
	}
	return view, nil
}

func viewOf(pairs ...string) models.RegistryView {
	v := models.RegistryView{Time: map[string]string{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Time[pairs[i]] = pairs[i+1]
	}
	return v
}
