package relay

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/livehostne/player/internal/platform/metrics"

	"golang.org/x/sync/singleflight"
)

// Config holds the lifetimes the Service applies to cached content.
type Config struct {
	// ManifestFreshness is how long a fetched playlist is reused before the
	// origin is asked again. Applies to root and variant playlists alike.
	ManifestFreshness time.Duration
	// SegmentFreshness is how long fetched segment bytes are reused.
	SegmentFreshness time.Duration
}

// DefaultConfig returns the stock lifetimes.
func DefaultConfig() Config {
	return Config{
		ManifestFreshness: DefaultManifestFreshness,
		SegmentFreshness:  DefaultContentTTL,
	}
}

// Service resolves tokens, serves playlists and segments from the content
// cache or the origin, and rewrites playlists so they point back at the relay.
type Service struct {
	registry Registry
	cache    ContentCache
	rewriter Rewriter
	origin   Origin
	cfg      Config
	metrics  *metrics.Metrics

	fetches singleflight.Group
}

// NewService wires a Service. Zero durations in cfg fall back to DefaultConfig.
// m may be nil to disable metric recording (e.g. in tests).
func NewService(registry Registry, cache ContentCache, rewriter Rewriter, origin Origin, cfg Config, m *metrics.Metrics) *Service {
	def := DefaultConfig()
	if cfg.ManifestFreshness <= 0 {
		cfg.ManifestFreshness = def.ManifestFreshness
	}
	if cfg.SegmentFreshness <= 0 {
		cfg.SegmentFreshness = def.SegmentFreshness
	}
	return &Service{
		registry: registry,
		cache:    cache,
		rewriter: rewriter,
		origin:   origin,
		cfg:      cfg,
		metrics:  m,
	}
}

// Register validates rawURL and registers it, returning its token.
func (s *Service) Register(ctx context.Context, rawURL string) (Token, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", validationError("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", validationError("url is malformed")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", validationError("url scheme must be http or https")
	}
	if u.Host == "" {
		return "", validationError("url has no host")
	}
	return s.registry.Register(ctx, rawURL)
}

// Stream returns the rewritten playlist registered under token. Master
// playlists come back with variant references rewritten, media playlists with
// segment references rewritten; token is the root of every emitted path.
func (s *Service) Stream(ctx context.Context, token Token) (string, error) {
	originURL, err := s.registry.Resolve(ctx, token)
	if err != nil {
		return "", err
	}
	text, err := s.manifest(ctx, token, originURL)
	if err != nil {
		return "", err
	}
	return s.rewriter.Rewrite(ctx, RewriteRequest{
		Playlist: text,
		BaseURL:  originURL,
		Root:     token,
		Scope:    ScopeStream,
	})
}

// Variant returns the rewritten variant playlist registered under variant.
// root is only carried into the emitted paths; it is not resolved.
func (s *Service) Variant(ctx context.Context, root, variant Token) (string, error) {
	originURL, err := s.registry.Resolve(ctx, variant)
	if err != nil {
		return "", err
	}
	text, err := s.manifest(ctx, variant, originURL)
	if err != nil {
		return "", err
	}
	return s.rewriter.Rewrite(ctx, RewriteRequest{
		Playlist: text,
		BaseURL:  originURL,
		Root:     root,
		Scope:    ScopeVariant,
	})
}

// Segment returns the raw bytes of the segment registered under segment.
func (s *Service) Segment(ctx context.Context, segment Token) ([]byte, error) {
	originURL, err := s.registry.Resolve(ctx, segment)
	if err != nil {
		return nil, err
	}

	key := SegmentKey(segment)
	if b, ok := s.cache.GetFresh(ctx, key, s.cfg.SegmentFreshness); ok {
		s.observeLookup(KindSegment, true)
		return b, nil
	}
	s.observeLookup(KindSegment, false)

	b, err := s.fetch(ctx, KindSegment, originURL)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, key, b)
	return b, nil
}

// manifest returns the raw playlist text for token, from the cache when it is
// fresh enough and from the origin otherwise.
func (s *Service) manifest(ctx context.Context, token Token, originURL string) (string, error) {
	key := ManifestKey(token)
	if b, ok := s.cache.GetFresh(ctx, key, s.cfg.ManifestFreshness); ok {
		s.observeLookup(KindManifest, true)
		return string(b), nil
	}
	s.observeLookup(KindManifest, false)

	b, err := s.fetch(ctx, KindManifest, originURL)
	if err != nil {
		return "", err
	}
	s.cache.Put(ctx, key, b)
	return string(b), nil
}

// fetch collapses concurrent fetches of the same origin URL into one request.
// The shared request is detached from the first caller's cancellation so one
// client going away does not fail the others.
func (s *Service) fetch(ctx context.Context, kind Kind, originURL string) ([]byte, error) {
	v, err, _ := s.fetches.Do(string(kind)+" "+originURL, func() (any, error) {
		b, err := s.origin.Fetch(context.WithoutCancel(ctx), originURL)
		if s.metrics != nil {
			s.metrics.ObserveOriginFetch(string(kind), err)
		}
		return b, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Service) observeLookup(kind Kind, hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveCacheLookup(string(kind), hit)
	}
}
