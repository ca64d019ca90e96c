package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCatalogTimeout = 5 * time.Second
	defaultCatalogTTL     = time.Hour

	// maxCatalogBody bounds how much of the remote rate sheet we read.
	maxCatalogBody = 16 << 20
)

// Catalog is a dynamically fetched model rate sheet keyed by model id.
type Catalog map[string]Rate

// CatalogFetcher retrieves the remote pricing catalog with a TTL cache.
// Concurrent fetches for an expired cache collapse into one request.
// Every failure degrades to an empty catalog; the fetcher never blocks a
// request on pricing availability beyond its own short timeout.
type CatalogFetcher struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu        sync.Mutex
	cached    Catalog
	expiresAt time.Time

	sf singleflight.Group
}

// NewCatalogFetcher creates a fetcher for the given catalog URL. An empty
// URL disables dynamic pricing entirely.
func NewCatalogFetcher(url string, ttl time.Duration) *CatalogFetcher {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CatalogFetcher{
		url:    url,
		client: &http.Client{Timeout: defaultCatalogTimeout},
		ttl:    ttl,
	}
}

// Fetch returns the current catalog, refreshing it when the cache has
// expired. On failure the previous catalog is kept if present, otherwise
// an empty catalog is returned.
func (f *CatalogFetcher) Fetch(ctx context.Context) Catalog {
	if f == nil || f.url == "" {
		return Catalog{}
	}

	f.mu.Lock()
	if f.cached != nil && time.Now().Before(f.expiresAt) {
		cached := f.cached
		f.mu.Unlock()
		return cached
	}
	f.mu.Unlock()

	value, err, _ := f.sf.Do("catalog", func() (any, error) {
		f.mu.Lock()
		if f.cached != nil && time.Now().Before(f.expiresAt) {
			cached := f.cached
			f.mu.Unlock()
			return cached, nil
		}
		f.mu.Unlock()

		catalog, err := f.fetchRemote(ctx)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		f.cached = catalog
		f.expiresAt = time.Now().Add(f.ttl)
		f.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		log.WithError(err).Warn("pricing catalog fetch failed; continuing with stale or empty catalog")
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.cached != nil {
			return f.cached
		}
		return Catalog{}
	}
	return value.(Catalog)
}

func (f *CatalogFetcher) fetchRemote(ctx context.Context) (Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pricing catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch pricing catalog: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBody))
	if err != nil {
		return nil, fmt.Errorf("read pricing catalog: %w", err)
	}

	return ParseCatalog(body), nil
}

// ParseCatalog decodes a rate sheet in the common per-token cost format
// (model id → {input_cost_per_token, output_cost_per_token, ...}).
// Entries without a usable input or output price are skipped.
func ParseCatalog(body []byte) Catalog {
	catalog := make(Catalog)

	gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		input := value.Get("input_cost_per_token").Float()
		output := value.Get("output_cost_per_token").Float()
		if input <= 0 && output <= 0 {
			return true
		}
		catalog[key.String()] = Rate{
			InputPerMillion:      input * 1e6,
			OutputPerMillion:     output * 1e6,
			CacheReadPerMillion:  value.Get("cache_read_input_token_cost").Float() * 1e6,
			CacheWritePerMillion: value.Get("cache_creation_input_token_cost").Float() * 1e6,
		}
		return true
	})

	return catalog
}
