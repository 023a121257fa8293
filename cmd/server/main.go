package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/livehostne/player/internal/platform/config"
	"github.com/livehostne/player/internal/platform/logger"
	"github.com/livehostne/player/internal/platform/metrics"
	"github.com/livehostne/player/internal/platform/ratelimit"
	"github.com/livehostne/player/internal/relay"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "3000")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	staticDir := config.GetEnv("STATIC_DIR", "public")
	rewriterName := config.GetEnv("REWRITER", "line")

	urlTTL := config.GetEnvDuration("URL_TTL", relay.DefaultURLTTL)
	contentTTL := config.GetEnvDuration("CONTENT_TTL", relay.DefaultContentTTL)
	manifestFreshness := config.GetEnvDuration("MANIFEST_FRESHNESS", relay.DefaultManifestFreshness)
	sweepInterval := config.GetEnvDuration("SWEEP_INTERVAL", relay.DefaultSweepInterval)
	originTimeout := config.GetEnvDuration("ORIGIN_TIMEOUT", relay.DefaultOriginTimeout)
	originMaxBytes := config.GetEnvInt64("ORIGIN_MAX_BYTES", relay.DefaultOriginMaxBytes)
	cacheMaxEntries := config.GetEnvInt("CONTENT_CACHE_MAX_ENTRIES", 0)
	registerLimit := config.GetEnvInt("REGISTER_RATE_LIMIT", 60)

	log := logger.New(logLevel, logFormat)

	registry, cache, closeStores, err := newStores(log, urlTTL, contentTTL, cacheMaxEntries)
	if err != nil {
		log.Error("store setup failed", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	met := metrics.New()
	origin := relay.NewHTTPOrigin(&http.Client{Timeout: originTimeout}, originMaxBytes)
	svc := relay.NewService(registry, cache, relay.NewRewriter(rewriterName, registry), origin, relay.Config{
		ManifestFreshness: manifestFreshness,
		SegmentFreshness:  contentTTL,
	}, met)
	h := relay.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetStoreSizes(registry.Len(r.Context()), cache.Len(r.Context())) }).ServeHTTP(w, r)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	h.Routes(r, ratelimit.Middleware(ratelimit.Config{RequestLimit: registerLimit, Window: time.Minute}))
	r.Handle("/*", http.FileServer(http.Dir(staticDir)))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sweeper := relay.NewSweeper(registry, cache, sweepInterval, nil, log, met)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"url_ttl", urlTTL.String(),
		"manifest_freshness", manifestFreshness.String(),
		"sweep_interval", sweepInterval.String(),
		"rewriter", rewriterName,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	stop()
	wg.Wait()

	log.Info("server stopped")
}

// newStores builds the registry and content cache: Redis-backed when
// REDIS_ADDR is set, otherwise in-memory (LRU-bounded when maxEntries > 0).
func newStores(log *slog.Logger, urlTTL, contentTTL time.Duration, maxEntries int) (relay.Registry, relay.ContentCache, func(), error) {
	if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
		client, err := relay.NewRedisClient(context.Background(), relay.RedisConfig{
			Addr:     addr,
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("using redis stores", "addr", addr)
		closeFn := func() { client.Close() }
		return relay.NewRedisRegistry(client, urlTTL, nil),
			relay.NewRedisContentCache(client, contentTTL, nil, log),
			closeFn, nil
	}

	registry := relay.NewInMemoryRegistry(urlTTL, nil)
	if maxEntries > 0 {
		log.Info("using lru content cache", "max_entries", maxEntries)
		return registry, relay.NewLRUContentCache(maxEntries, contentTTL, nil), func() {}, nil
	}
	return registry, relay.NewInMemoryContentCache(contentTTL, nil), func() {}, nil
}
