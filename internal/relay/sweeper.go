package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/livehostne/player/internal/platform/metrics"
)

// Sweeper periodically evicts stale registry and content cache entries.
type Sweeper struct {
	registry Registry
	cache    ContentCache
	interval time.Duration
	now      Clock
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// SweepResult counts the entries removed by one pass.
type SweepResult struct {
	Registry int
	Content  int
}

// NewSweeper returns a Sweeper running every interval (DefaultSweepInterval
// if interval <= 0). m may be nil.
func NewSweeper(registry Registry, cache ContentCache, interval time.Duration, clock Clock, log *slog.Logger, m *metrics.Metrics) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		registry: registry,
		cache:    cache,
		interval: interval,
		now:      orNow(clock),
		log:      log,
		metrics:  m,
	}
}

// Run sweeps every interval until ctx is cancelled. It returns ctx.Err().
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SweepOnce performs a single pass over both stores. A failure in one store
// is logged and does not stop the other from being swept.
func (s *Sweeper) SweepOnce(ctx context.Context) SweepResult {
	now := s.now()
	var res SweepResult

	n, err := s.registry.Sweep(ctx, now)
	if err != nil {
		s.log.Warn("registry sweep failed", slog.String("error", err.Error()))
	}
	res.Registry = n

	n, err = s.cache.Sweep(ctx, now)
	if err != nil {
		s.log.Warn("content cache sweep failed", slog.String("error", err.Error()))
	}
	res.Content = n

	if s.metrics != nil {
		s.metrics.AddSweepEvicted("registry", res.Registry)
		s.metrics.AddSweepEvicted("content", res.Content)
	}
	s.log.Debug("sweep finished",
		slog.Int("registry_evicted", res.Registry),
		slog.Int("content_evicted", res.Content))
	return res
}
