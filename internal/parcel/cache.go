package parcel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// boundaryCache is a concurrent-safe LRU cache for lot boundary lookups with
// TTL expiration. Negative results (nil boundaries) are cached too, so a
// repeated miss never re-issues the upstream call within the TTL. Writers for
// the same key compute the same value, so overwrite is idempotent.
type boundaryCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	boundary  *Boundary
	createdAt time.Time
}

// CacheStats contains cache performance counters.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

func newBoundaryCache(maxEntries int, ttl time.Duration) *boundaryCache {
	return &boundaryCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// cacheKey rounds the coordinate to five decimals (about one meter at Hong
// Kong's latitude) so nearby repeat queries share an entry.
func cacheKey(lon, lat float64, dataType string) string {
	return fmt.Sprintf("%.5f/%.5f/%s", lon, lat, dataType)
}

// get returns (boundary, true) on a hit; the boundary may be nil for a
// cached negative result.
func (c *boundaryCache) get(key string) (*Boundary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.boundary, true
}

// put stores a result, evicting the oldest entry at capacity.
func (c *boundaryCache) put(key string, b *Boundary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{boundary: b, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &cacheEntry{boundary: b, createdAt: time.Now()}
	c.order = append(c.order, key)
}

func (c *boundaryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// stats returns a snapshot of cache counters.
func (c *boundaryCache) stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}
	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}
