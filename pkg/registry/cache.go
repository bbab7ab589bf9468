package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultURL is the published catalog.
	DefaultURL = "https://raw.githubusercontent.com/hemangjoshi37a/mcphub/main/registry/servers.yaml"
	// DefaultTTL is how long a cached catalog is served without refetching.
	DefaultTTL = time.Hour
	// CacheFileName is the cache file inside the mcphub state directory.
	CacheFileName = "registry_cache.yaml"
)

// Source produces a raw catalog document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPSource downloads the catalog.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Fetch GETs the catalog. Non-2xx statuses are errors.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: status %d", s.URL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// FileSource reads the catalog from a local file.
type FileSource string

// Fetch reads the file.
func (s FileSource) Fetch(context.Context) ([]byte, error) {
	return os.ReadFile(string(s))
}

// cacheDoc is the on-disk cache layout.
type cacheDoc struct {
	Timestamp int64    `yaml:"timestamp"`
	Data      Registry `yaml:"data"`
}

// Cache serves the catalog from a local file, refetching it from its Source
// once the TTL has passed. When a refetch fails, an expired cache is served.
type Cache struct {
	path   string
	ttl    time.Duration
	source Source
	logger *slog.Logger
	now    func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = d
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a cache stored at path.
func NewCache(path string, source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		path:   path,
		ttl:    DefaultTTL,
		source: source,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// Load returns the catalog. force skips a fresh cache.
func (c *Cache) Load(ctx context.Context, force bool) (*Registry, error) {
	cached, fetchedAt, cacheErr := c.readCache()
	if cacheErr == nil && !force && c.now().Sub(fetchedAt) < c.ttl {
		c.logger.Debug("using cached registry", "age", c.now().Sub(fetchedAt).Round(time.Second))
		return cached, nil
	}

	reg, err := c.refresh(ctx)
	if err == nil {
		return reg, nil
	}
	if cacheErr == nil {
		c.logger.Warn("registry refresh failed, using stale cache", "error", err, "fetched_at", fetchedAt)
		return cached, nil
	}
	return nil, err
}

func (c *Cache) refresh(ctx context.Context) (*Registry, error) {
	raw, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := ParseBytes(raw)
	if err != nil {
		return nil, err
	}
	if err := c.writeCache(reg); err != nil {
		c.logger.Warn("failed to write registry cache", "path", c.path, "error", err)
	}
	return reg, nil
}

func (c *Cache) readCache() (*Registry, time.Time, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var doc cacheDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("parsing registry cache: %w", err)
	}
	return &doc.Data, time.Unix(doc.Timestamp, 0), nil
}

func (c *Cache) writeCache(reg *Registry) error {
	raw, err := yaml.Marshal(cacheDoc{Timestamp: c.now().Unix(), Data: *reg})
	if err != nil {
		return fmt.Errorf("marshaling registry cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return os.WriteFile(c.path, raw, 0644)
}
