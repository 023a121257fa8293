package relay

import (
	"context"
	"sync"
	"time"
)

// ContentCache holds fetched playlist text and segment bytes. Freshness is
// decided per lookup; eviction happens only in Sweep.
type ContentCache interface {
	// GetFresh returns the payload under key if it was stored less than ttl ago.
	// Stale entries are reported as a miss but left in place.
	GetFresh(ctx context.Context, key CacheKey, ttl time.Duration) ([]byte, bool)

	// Put stores or overwrites the payload under key, stamped with the current time.
	Put(ctx context.Context, key CacheKey, payload []byte)

	// Sweep removes entries older than the cache's max age at now, regardless
	// of kind, and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Len returns the number of entries currently held.
	Len(ctx context.Context) int
}

type contentEntry struct {
	payload  []byte
	cachedAt time.Time
}

func (e contentEntry) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.cachedAt) < ttl
}

// InMemoryContentCache is an unbounded map-backed ContentCache.
type InMemoryContentCache struct {
	mu      sync.RWMutex
	entries map[CacheKey]contentEntry
	maxAge  time.Duration
	now     Clock
}

// NewInMemoryContentCache returns an empty cache whose entries are swept once
// older than maxAge (DefaultContentTTL if maxAge <= 0).
func NewInMemoryContentCache(maxAge time.Duration, clock Clock) *InMemoryContentCache {
	if maxAge <= 0 {
		maxAge = DefaultContentTTL
	}
	return &InMemoryContentCache{
		entries: make(map[CacheKey]contentEntry),
		maxAge:  maxAge,
		now:     orNow(clock),
	}
}

// GetFresh implements ContentCache.GetFresh.
func (c *InMemoryContentCache) GetFresh(_ context.Context, key CacheKey, ttl time.Duration) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !e.fresh(c.now(), ttl) {
		return nil, false
	}
	return e.payload, true
}

// Put implements ContentCache.Put.
func (c *InMemoryContentCache) Put(_ context.Context, key CacheKey, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = contentEntry{payload: payload, cachedAt: c.now()}
}

// Sweep implements ContentCache.Sweep.
func (c *InMemoryContentCache) Sweep(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.entries {
		if now.Sub(e.cachedAt) > c.maxAge {
			delete(c.entries, key)
			n++
		}
	}
	return n, nil
}

// Len implements ContentCache.Len.
func (c *InMemoryContentCache) Len(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
