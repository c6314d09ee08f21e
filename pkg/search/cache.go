package search

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/latticehq/lattice/pkg/types"
)

const (
	// DefaultCacheTTL is how long a cached response stays valid.
	DefaultCacheTTL = 300 * time.Second

	// DefaultCacheWindow quantizes time into the cache key, so two
	// identical queries in the same window share an entry.
	DefaultCacheWindow = 60 * time.Second

	// DefaultCacheSize bounds the LRU entry count.
	DefaultCacheSize = 1000
)

// CacheStats is a point-in-time counter snapshot.
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Entries   int     `json:"entries"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
}

type cacheEntry struct {
	payload   *types.SearchResponse
	expiresAt time.Time
}

// Cache holds recent search responses behind a bounded LRU with per-entry
// TTL expiry. It is best-effort throughout: construction failure degrades to
// a nil cache, and every method tolerates the nil receiver by behaving as a
// permanent miss.
type Cache struct {
	entries *lru.Cache[string, *cacheEntry]
	ttl     time.Duration
	window  time.Duration
	size    int
	now     func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheTTL overrides the entry TTL.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheWindow overrides the key time window.
func WithCacheWindow(window time.Duration) CacheOption {
	return func(c *Cache) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithCacheSize overrides the LRU capacity.
func WithCacheSize(size int) CacheOption {
	return func(c *Cache) {
		if size > 0 {
			c.size = size
		}
	}
}

// withCacheClock injects a clock for tests.
func withCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a Cache. A nil *Cache is a valid always-miss cache, so
// callers never need to branch on cache availability.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		ttl:    DefaultCacheTTL,
		window: DefaultCacheWindow,
		size:   DefaultCacheSize,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	entries, err := lru.NewWithEvict[string, *cacheEntry](c.size, func(string, *cacheEntry) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil
	}
	c.entries = entries
	return c
}

// Key derives the cache key for a request. The query is normalized, filters
// are serialized deterministically and the current time is quantized into
// the configured window.
func (c *Cache) Key(req *types.SearchRequest) string {
	window := DefaultCacheWindow
	var now time.Time
	if c != nil {
		window = c.window
		now = c.now()
	} else {
		now = time.Now()
	}

	filterJSON, err := json.Marshal(req.Filters)
	if err != nil {
		filterJSON = []byte("{}")
	}
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		strings.ToLower(strings.TrimSpace(req.Query)),
		req.TenantID,
		req.ProjectID,
		filterJSON,
		req.K,
		now.Unix()/int64(window.Seconds()),
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached response for a key, or nil on miss. Expired entries
// are removed and counted as misses.
func (c *Cache) Get(key string) *types.SearchResponse {
	if c == nil {
		return nil
	}
	entry, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil
	}
	if c.now().After(entry.expiresAt) {
		c.entries.Remove(key)
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)
	return entry.payload
}

// Put stores a response under a key with the configured TTL.
func (c *Cache) Put(key string, payload *types.SearchResponse) {
	if c == nil {
		return
	}
	c.entries.Add(key, &cacheEntry{
		payload:   payload,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	hits := c.hits.Load()
	misses := c.misses.Load()
	stats := CacheStats{
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		Entries:   c.entries.Len(),
		Capacity:  c.size,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}
