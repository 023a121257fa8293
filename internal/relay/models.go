package relay

import "time"

// Token is the opaque identifier that stands in for an origin URL in every
// client-facing path.
type Token string

// Kind distinguishes content cache entries.
type Kind string

const (
	KindManifest Kind = "manifest"
	KindSegment  Kind = "segment"
)

// CacheKey addresses a content cache entry: a token plus the kind of payload
// stored under it.
type CacheKey struct {
	Kind  Kind
	Token Token
}

// String renders the key as "kind:token", e.g. "manifest:3fa9c0e1d2".
func (k CacheKey) String() string {
	return string(k.Kind) + ":" + string(k.Token)
}

// ManifestKey returns the content cache key for a playlist served under t.
func ManifestKey(t Token) CacheKey { return CacheKey{Kind: KindManifest, Token: t} }

// SegmentKey returns the content cache key for a media segment.
func SegmentKey(t Token) CacheKey { return CacheKey{Kind: KindSegment, Token: t} }

// Entry is a registry record.
type Entry struct {
	Token     Token
	URL       string
	CreatedAt time.Time
}

// expired reports whether the entry has outlived ttl at now.
func (e Entry) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) > ttl
}

// Clock returns the current time. Stores take one so tests can move time.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// Defaults for the relay lifetimes.
const (
	DefaultURLTTL            = time.Hour
	DefaultContentTTL        = time.Hour
	DefaultManifestFreshness = 30 * time.Second
	DefaultSweepInterval     = 5 * time.Minute
)
