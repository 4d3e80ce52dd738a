package server

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// tileCache is a concurrent-safe LRU cache for basemap tiles with TTL
// expiration.
type tileCache struct {
	mu         sync.Mutex
	entries    map[string]tileEntry
	order      []string // front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type tileEntry struct {
	data      []byte
	createdAt time.Time
}

// TileCacheStats contains tile cache counters.
type TileCacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func newTileCache(maxEntries int, ttl time.Duration) *tileCache {
	return &tileCache{
		entries:    make(map[string]tileEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func tileKey(z, x, y int) string {
	return fmt.Sprintf("%d/%d/%d", z, x, y)
}

// get returns the cached tile, or nil on miss or expiration.
func (c *tileCache) get(z, x, y int) []byte {
	key := tileKey(z, x, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}
	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.data
}

// put stores a tile, evicting the oldest entries at capacity.
func (c *tileCache) put(z, x, y int, data []byte) {
	key := tileKey(z, x, y)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = tileEntry{data: data, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = tileEntry{data: data, createdAt: time.Now()}
	c.order = append(c.order, key)
}

func (c *tileCache) stats() TileCacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return TileCacheStats{Entries: entries, Hits: hits, Misses: misses, HitRate: hitRate}
}

func (c *tileCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// TileProxy proxies basemap raster tiles from an upstream tile server so
// browser map clients never talk to the upstream directly.
type TileProxy struct {
	baseURL   string
	format    string
	userAgent string
	client    *http.Client
	cache     *tileCache
}

// NewTileProxy creates a basemap tile proxy.
func NewTileProxy(baseURL, format, userAgent string, cache *tileCache) *TileProxy {
	return &TileProxy{
		baseURL:   baseURL,
		format:    format,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
		cache:     cache,
	}
}

// CacheStats exposes the tile cache counters.
func (p *TileProxy) CacheStats() TileCacheStats {
	return p.cache.stats()
}

// fetch retrieves one tile from the cache or the upstream server.
func (p *TileProxy) fetch(r *http.Request, z, x, y int) ([]byte, error) {
	if cached := p.cache.get(z, x, y); cached != nil {
		return cached, nil
	}

	url := fmt.Sprintf("%s/%d/%d/%d.%s", p.baseURL, z, x, y, p.format)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "server: create basemap request")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "server: fetch basemap tile")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("server: basemap upstream returned %d for %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "server: read basemap tile body")
	}

	p.cache.put(z, x, y, data)
	return data, nil
}

// contentType returns the MIME type for the configured tile format.
func (p *TileProxy) contentType() string {
	switch p.format {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// ServeHTTP implements http.Handler for paths of the form /{z}/{x}/{y}.{format}.
func (p *TileProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var z, x, y int
	var ext string
	if _, err := fmt.Sscanf(r.URL.Path, "/%d/%d/%d.%s", &z, &x, &y, &ext); err != nil {
		http.Error(w, "invalid tile path", http.StatusBadRequest)
		return
	}

	data, err := p.fetch(r, z, x, y)
	if err != nil {
		zap.L().Error("basemap tile fetch failed", zap.Error(err))
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", p.contentType())
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}
