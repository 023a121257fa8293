package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Origin fetch results.
const (
	FetchOK    = "ok"
	FetchError = "error"
)

// Metrics holds Prometheus counters and gauges for the HLS relay.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	registrationsTotal prometheus.Counter
	cacheLookupsTotal  *prometheus.CounterVec
	originFetchesTotal *prometheus.CounterVec
	sweepEvictedTotal  *prometheus.CounterVec
	registryEntries    prometheus.Gauge
	contentEntries     prometheus.Gauge
}

// New creates and registers Prometheus metrics for the relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	registrationsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hls_relay_registrations_total",
		Help: "Total number of stream URLs registered through the API",
	})
	cacheLookupsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_relay_content_cache_lookups_total",
		Help: "Content cache lookups by entry kind and result",
	}, []string{"kind", "result"})
	originFetchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_relay_origin_fetches_total",
		Help: "Origin fetches by entry kind and result",
	}, []string{"kind", "result"})
	sweepEvictedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hls_relay_sweep_evicted_total",
		Help: "Entries evicted by the expiry sweeper, by store",
	}, []string{"store"})
	registryEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_relay_registry_entries",
		Help: "Number of tokens currently held by the registry",
	})
	contentEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hls_relay_content_cache_entries",
		Help: "Number of payloads currently held by the content cache",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		registrationsTotal,
		cacheLookupsTotal,
		originFetchesTotal,
		sweepEvictedTotal,
		registryEntries,
		contentEntries,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		errorsTotal:        errorsTotal,
		registrationsTotal: registrationsTotal,
		cacheLookupsTotal:  cacheLookupsTotal,
		originFetchesTotal: originFetchesTotal,
		sweepEvictedTotal:  sweepEvictedTotal,
		registryEntries:    registryEntries,
		contentEntries:     contentEntries,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncRegistrations increments the registrations counter.
func (m *Metrics) IncRegistrations() {
	m.registrationsTotal.Inc()
}

// ObserveCacheLookup records a content cache hit or miss for kind.
func (m *Metrics) ObserveCacheLookup(kind string, hit bool) {
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	m.cacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveOriginFetch records the outcome of an origin fetch for kind.
func (m *Metrics) ObserveOriginFetch(kind string, err error) {
	result := FetchOK
	if err != nil {
		result = FetchError
	}
	m.originFetchesTotal.WithLabelValues(kind, result).Inc()
}

// AddSweepEvicted adds n evictions for store ("registry" or "content").
func (m *Metrics) AddSweepEvicted(store string, n int) {
	if n <= 0 {
		return
	}
	m.sweepEvictedTotal.WithLabelValues(store).Add(float64(n))
}

// SetStoreSizes sets the registry and content cache size gauges.
func (m *Metrics) SetStoreSizes(registryEntries, contentEntries int) {
	m.registryEntries.Set(float64(registryEntries))
	m.contentEntries.Set(float64(contentEntries))
}

// Registry exposes the underlying Prometheus registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. store sizes).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
