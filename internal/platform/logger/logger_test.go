package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_levels(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"info":    slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for in, want := range cases {
		log := New(in, "json")
		if !log.Enabled(context.Background(), want) {
			t.Errorf("%s: expected level %v enabled", in, want)
		}
		if want > slog.LevelDebug && log.Enabled(context.Background(), want-4) {
			t.Errorf("%s: level below %v should be disabled", in, want)
		}
	}
}

func TestRequestLogger_generates_request_id(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("handler should see a request id")
		}
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hello"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/abc", nil))

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID on response")
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not json: %v (%s)", err, buf.String())
	}
	if line["path"] != "/stream/abc" {
		t.Errorf("expected path logged, got %v", line["path"])
	}
	if line["status"] != float64(http.StatusTeapot) {
		t.Errorf("expected status 418, got %v", line["status"])
	}
	if line["size"] != float64(5) {
		t.Errorf("expected size 5, got %v", line["size"])
	}
	if line["request_id"] != rec.Header().Get(RequestIDHeader) {
		t.Errorf("logged request id %v does not match header", line["request_id"])
	}
}

func TestRequestLogger_keeps_inbound_request_id(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected inbound id echoed, got %q", got)
	}
}

func TestNewWithWriter_text_format(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "text")
	log.Info("hello", slog.String("k", "v"))

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("msg=hello")) || !bytes.Contains([]byte(out), []byte("k=v")) {
		t.Errorf("expected text handler output, got %q", out)
	}
}
