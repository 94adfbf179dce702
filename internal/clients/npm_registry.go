package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

// NpmRegistry queries the registry's packument endpoint directly, for hosts
// where the npm CLI is not installed
type NpmRegistry struct {
	httpClient *http.Client
	BaseURL    string
	Timeout    time.Duration
}

// NewNpmRegistry creates a new registry client
func NewNpmRegistry(baseURL string, timeout time.Duration) *NpmRegistry {
	return &NpmRegistry{
		httpClient: cleanhttp.DefaultPooledClient(),
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Timeout:    timeout,
	}
}

// View fetches the packument for name and returns its publish times
func (c *NpmRegistry) View(ctx context.Context, name string) (models.RegistryView, error) {
	if name == "" {
		return models.RegistryView{}, fmt.Errorf("%w: empty package name", ErrUnavailable)
	}

	ctx, cancel := withQueryTimeout(ctx, c.Timeout)
	defer cancel()

	// scoped names keep the "@" but the slash must be escaped
	endpoint := c.BaseURL + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.RegistryView{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.RegistryView{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.RegistryView{}, fmt.Errorf("%w: registry returned status %s for %s", ErrUnavailable, resp.Status, name)
	}

	var view models.RegistryView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return models.RegistryView{}, fmt.Errorf("%w: failed to decode metadata for %s: %v", ErrUnavailable, name, err)
	}

	return view, nil
}
