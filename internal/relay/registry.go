package relay

import (
	"context"
	"sync"
	"time"
)

// Registry maps tokens to origin URLs. Implementations must be safe for
// concurrent use; handlers and the sweeper share one instance.
type Registry interface {
	// Register stores url under its token and returns the token. Registering a
	// URL that is already present replaces the entry and restarts its lifetime.
	Register(ctx context.Context, url string) (Token, error)

	// Resolve returns the URL registered under token. It returns ErrNotFound if
	// the token is unknown and ErrExpired if the entry is older than the TTL;
	// in the latter case the entry is removed, so a second Resolve returns
	// ErrNotFound.
	Resolve(ctx context.Context, token Token) (string, error)

	// Sweep removes every entry older than the TTL at now and returns how many
	// were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Len returns the number of entries currently held, stale or not.
	Len(ctx context.Context) int
}

// InMemoryRegistry is a concurrency-safe in-memory implementation of Registry.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	entries map[Token]Entry
	ttl     time.Duration
	now     Clock
}

// NewInMemoryRegistry returns an empty registry whose entries live for ttl.
// If ttl <= 0, DefaultURLTTL is used. A nil clock means time.Now.
func NewInMemoryRegistry(ttl time.Duration, clock Clock) *InMemoryRegistry {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	return &InMemoryRegistry{
		entries: make(map[Token]Entry),
		ttl:     ttl,
		now:     orNow(clock),
	}
}

// Register implements Registry.Register.
func (r *InMemoryRegistry) Register(_ context.Context, url string) (Token, error) {
	token := NewToken(url)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[token] = Entry{Token: token, URL: url, CreatedAt: r.now()}
	return token, nil
}

// Resolve implements Registry.Resolve.
func (r *InMemoryRegistry) Resolve(_ context.Context, token Token) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[token]
	r.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if !e.expired(r.now(), r.ttl) {
		return e.URL, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the write lock; a concurrent Register may have refreshed it.
	if cur, ok := r.entries[token]; ok {
		if !cur.expired(r.now(), r.ttl) {
			return cur.URL, nil
		}
		delete(r.entries, token)
	}
	return "", ErrExpired
}

// Sweep implements Registry.Sweep.
func (r *InMemoryRegistry) Sweep(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for token, e := range r.entries {
		if e.expired(now, r.ttl) {
			delete(r.entries, token)
			n++
		}
	}
	return n, nil
}

// Len implements Registry.Len.
func (r *InMemoryRegistry) Len(_ context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
