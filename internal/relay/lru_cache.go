package relay

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUContentCache is a ContentCache bounded by entry count. When full, the
// least recently used payload is dropped; entries also age out after maxAge
// on their own, and Sweep removes whatever the sweeper considers stale.
type LRUContentCache struct {
	lru    *expirable.LRU[CacheKey, contentEntry]
	maxAge time.Duration
	now    Clock
}

// NewLRUContentCache returns a cache holding at most size entries.
func NewLRUContentCache(size int, maxAge time.Duration, clock Clock) *LRUContentCache {
	if maxAge <= 0 {
		maxAge = DefaultContentTTL
	}
	return &LRUContentCache{
		lru:    expirable.NewLRU[CacheKey, contentEntry](size, nil, maxAge),
		maxAge: maxAge,
		now:    orNow(clock),
	}
}

// GetFresh implements ContentCache.GetFresh.
func (c *LRUContentCache) GetFresh(_ context.Context, key CacheKey, ttl time.Duration) ([]byte, bool) {
	e, ok := c.lru.Get(key)
	if !ok || !e.fresh(c.now(), ttl) {
		return nil, false
	}
	return e.payload, true
}

// Put implements ContentCache.Put.
func (c *LRUContentCache) Put(_ context.Context, key CacheKey, payload []byte) {
	c.lru.Add(key, contentEntry{payload: payload, cachedAt: c.now()})
}

// Sweep implements ContentCache.Sweep.
func (c *LRUContentCache) Sweep(_ context.Context, now time.Time) (int, error) {
	n := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && now.Sub(e.cachedAt) > c.maxAge {
			if c.lru.Remove(key) {
				n++
			}
		}
	}
	return n, nil
}

// Len implements ContentCache.Len.
func (c *LRUContentCache) Len(_ context.Context) int {
	return c.lru.Len()
}
