package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, p := range []string{"/a", "/missing", "/b"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(m.requestsTotal); got != 3 {
		t.Errorf("expected 3 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestObserve_labels(t *testing.T) {
	m := New()
	m.ObserveCacheLookup("manifest", true)
	m.ObserveCacheLookup("manifest", false)
	m.ObserveCacheLookup("manifest", false)
	m.ObserveOriginFetch("segment", errors.New("boom"))
	m.AddSweepEvicted("registry", 4)
	m.AddSweepEvicted("registry", 0)

	if got := testutil.ToFloat64(m.cacheLookupsTotal.WithLabelValues("manifest", ResultMiss)); got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.originFetchesTotal.WithLabelValues("segment", FetchError)); got != 1 {
		t.Errorf("expected 1 failed fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.sweepEvictedTotal.WithLabelValues("registry")); got != 4 {
		t.Errorf("expected 4 evictions, got %v", got)
	}
}

func TestHandler_refreshes_gauges(t *testing.T) {
	m := New()
	called := false
	srv := httptest.NewServer(m.Handler(func() {
		called = true
		m.SetStoreSizes(7, 3)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !called {
		t.Error("updateGauges not called")
	}
	if !strings.Contains(string(body), "hls_relay_registry_entries 7") {
		t.Errorf("expected registry gauge in exposition: %s", body)
	}
}
