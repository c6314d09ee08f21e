package search

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/types"
)

func TestCacheHitWithinWindow(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	cache := NewCache(withCacheClock(func() time.Time { return now }))
	require.NotNil(t, cache)

	req := &types.SearchRequest{TenantID: "t", ProjectID: "p", Query: "  Hello World ", K: 10}
	key := cache.Key(req)

	assert.Nil(t, cache.Get(key))
	payload := &types.SearchResponse{Total: 3}
	cache.Put(key, payload)

	got := cache.Get(key)
	require.NotNil(t, got)
	assert.Equal(t, payload, got)

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCacheKeyNormalizesQuery(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	cache := NewCache(withCacheClock(func() time.Time { return now }))

	a := cache.Key(&types.SearchRequest{TenantID: "t", ProjectID: "p", Query: "Hello World", K: 10})
	b := cache.Key(&types.SearchRequest{TenantID: "t", ProjectID: "p", Query: "  hello world  ", K: 10})
	assert.Equal(t, a, b)

	other := cache.Key(&types.SearchRequest{TenantID: "t2", ProjectID: "p", Query: "hello world", K: 10})
	assert.NotEqual(t, a, other)
}

func TestCacheKeyChangesAcrossWindows(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	cache := NewCache(withCacheClock(func() time.Time { return now }))
	req := &types.SearchRequest{TenantID: "t", ProjectID: "p", Query: "q", K: 10}

	first := cache.Key(req)
	now = now.Add(DefaultCacheWindow)
	second := cache.Key(req)
	assert.NotEqual(t, first, second)
}

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	cache := NewCache(withCacheClock(func() time.Time { return now }))
	req := &types.SearchRequest{TenantID: "t", ProjectID: "p", Query: "q", K: 10}

	key := cache.Key(req)
	cache.Put(key, &types.SearchResponse{Total: 1})

	now = now.Add(DefaultCacheTTL + 10*time.Second)
	assert.Nil(t, cache.Get(key))

	stats := cache.Stats()
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCacheBoundedEviction(t *testing.T) {
	cache := NewCache(WithCacheSize(2))

	cache.Put("k1", &types.SearchResponse{})
	cache.Put("k2", &types.SearchResponse{})
	cache.Put("k3", &types.SearchResponse{})

	stats := cache.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestCacheNilIsAlwaysMiss(t *testing.T) {
	var cache *Cache

	req := &types.SearchRequest{TenantID: "t", ProjectID: "p", Query: "q"}
	key := cache.Key(req)
	assert.NotEmpty(t, key)
	cache.Put(key, &types.SearchResponse{})
	assert.Nil(t, cache.Get(key))
	assert.Equal(t, CacheStats{}, cache.Stats())
}

func TestCacheKeyLength(t *testing.T) {
	cache := NewCache()
	for i := 0; i < 5; i++ {
		key := cache.Key(&types.SearchRequest{Query: fmt.Sprintf("query-%d", i)})
		assert.Len(t, key, 16)
	}
}
