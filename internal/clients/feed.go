package clients

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/spf13/afero"

	"github.com/ethanolivertroy/hulud-checker/internal/cache"
	"github.com/ethanolivertroy/hulud-checker/internal/log"
	"github.com/ethanolivertroy/hulud-checker/internal/models"
)

const (
	feedPackageColumn = "Package"
	feedVersionColumn = "Version"
	versionSeparator  = "||"
)

// ErrMalformedFeed is returned when the feed document does not have the
// expected Package/Version columns.
var ErrMalformedFeed = errors.New("malformed compromised package feed")

// FeedClient downloads the list of packages compromised by the attack
type FeedClient struct {
	httpClient *http.Client
	cache      *cache.Cache
	URL        string
}

// NewFeedClient creates a new feed client. The cache is optional.
func NewFeedClient(url string, c *cache.Cache) *FeedClient {
	httpClient := cleanhttp.DefaultClient()
	httpClient.Timeout = 60 * time.Second

	return &FeedClient{
		httpClient: httpClient,
		cache:      c,
		URL:        url,
	}
}

// FetchFeed fetches the feed and returns a map of package name -> vulnerable versions
func (c *FeedClient) FetchFeed(ctx context.Context) (models.Feed, error) {
	var data []byte

	// Check cache first
	if c.cache != nil {
		if cached, ok := c.cache.Get(c.URL); ok {
			age, _ := c.cache.Age(c.URL)
			log.WithFields("url", c.URL, "age", humanize.Time(time.Now().Add(-age))).Debug("using cached compromised package list")
			data = cached
		}
	}

	// Fetch from remote if not cached
	if data == nil {
		log.WithFields("url", c.URL).Info("downloading the list of affected packages")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build feed request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download the list of affected packages from %q: %w", c.URL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("failed to download the list of affected packages from %q: unexpected status code %d: %s",
				c.URL, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		feed, err := ParseFeed(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}

		// only cache documents that parsed
		if c.cache != nil {
			if err := c.cache.Set(c.URL, data); err != nil {
				log.WithFields("error", err).Warn("unable to cache the list of affected packages")
			}
		}
		return feed, nil
	}

	return ParseFeed(bytes.NewReader(data))
}

// LoadFeedFile reads the feed from a local CSV file instead of the network
func LoadFeedFile(fs afero.Fs, path string) (models.Feed, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file: %w", err)
	}
	defer f.Close()

	log.WithFields("path", path).Info("reading the list of affected packages")
	return ParseFeed(f)
}

// ParseFeed decodes the CSV feed. Columns are located by their header so the
// column order does not matter; extra columns are ignored.
func ParseFeed(r io.Reader) (models.Feed, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read header: %v", ErrMalformedFeed, err)
	}

	pkgIdx, verIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) {
		case feedPackageColumn:
			pkgIdx = i
		case feedVersionColumn:
			verIdx = i
		}
	}
	if pkgIdx < 0 || verIdx < 0 {
		return nil, fmt.Errorf("%w: expected %q and %q columns, got %v", ErrMalformedFeed, feedPackageColumn, feedVersionColumn, header)
	}

	feed := make(models.Feed)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
		}

		name := strings.TrimSpace(record[pkgIdx])
		if name == "" {
			line, _ := reader.FieldPos(pkgIdx)
			return nil, fmt.Errorf("%w: empty package name on line %d", ErrMalformedFeed, line)
		}

		feed.Add(name, SplitVersions(record[verIdx])...)
	}

	return feed, nil
}

// SplitVersions splits a specifier list like "= 1.0.0 || = 1.0.1" into
// plain versions. Every "=" is dropped and blanks are trimmed.
func SplitVersions(field string) []string {
	var versions []string
	for _, part := range strings.Split(field, versionSeparator) {
		v := strings.TrimSpace(strings.ReplaceAll(part, "=", ""))
		if v == "" {
			continue
		}
		versions = append(versions, v)
	}
	return versions
}
