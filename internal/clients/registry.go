package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// ErrUnavailable is returned when publish metadata for a package cannot be
// obtained: unknown package, registry or npm failure, timeout.
var ErrUnavailable = errors.New("package metadata unavailable")

// Registry returns the per-version publish times of a package
type Registry interface {
	View(ctx context.Context, name string) (models.RegistryView, error)
}

// NewRegistry returns the registry backend selected in the config
func NewRegistry(config *models.Config) (Registry, error) {
	switch config.Source {
	case models.SourceNpmCLI, "":
		npm, err := DetectNpm()
		if err != nil {
			return nil, err
		}
		npm.Timeout = config.QueryTimeout
		return npm, nil
	case models.SourceRegistry:
		return NewNpmRegistry(config.RegistryURL, config.QueryTimeout), nil
	default:
		return nil, fmt.Errorf("unknown registry source %q", config.Source)
	}
}

func withQueryTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
