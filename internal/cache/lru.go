// Package cache caches the aggregate summaries served to the insight agents.
// Recomputing a summary means re-reading whole sales and forecast tables, so
// results are kept hot between agent requests and dropped wholesale whenever
// a pipeline run replaces the underlying tables.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// lruWithTTL is a size-bounded cache with per-entry expiry. Expired entries
// report as misses on read; CleanupExpired reclaims their memory.
type lruWithTTL[K comparable, V any] struct {
	cache *lru.Cache[K, *ttlEntry[V]]
	ttl   time.Duration

	mu     sync.RWMutex
	hits   uint64
	misses uint64
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// newLRUWithTTL creates a cache holding at most size entries. A zero ttl
// disables expiration.
func newLRUWithTTL[K comparable, V any](size int, ttl time.Duration) (*lruWithTTL[K, V], error) {
	c, err := lru.New[K, *ttlEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &lruWithTTL[K, V]{cache: c, ttl: ttl}, nil
}

func (c *lruWithTTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache.Get(key)
	if !ok || (c.ttl > 0 && time.Now().After(entry.expiresAt)) {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return entry.value, true
}

func (c *lruWithTTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}
	c.cache.Add(key, &ttlEntry[V]{value: value, expiresAt: expiresAt})
}

func (c *lruWithTTL[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

func (c *lruWithTTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

// CleanupExpired removes expired entries and returns how many it removed.
// Intended for a periodic background sweep; reads already treat expired
// entries as absent.
func (c *lruWithTTL[K, V]) CleanupExpired() int {
	if c.ttl == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range c.cache.Keys() {
		if entry, ok := c.cache.Peek(key); ok && now.After(entry.expiresAt) {
			c.cache.Remove(key)
			removed++
		}
	}
	return removed
}

// Stats is a point-in-time hit/miss snapshot.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

func (c *lruWithTTL[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{Hits: c.hits, Misses: c.misses, Size: c.cache.Len(), HitRate: rate}
}
