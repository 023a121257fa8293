// Package ratelimit wraps go-chi/httprate for per-client request limits.
package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// Config holds configuration for the limiter middleware.
type Config struct {
	// RequestLimit is the maximum number of requests allowed per client in Window.
	// Zero or negative disables limiting.
	RequestLimit int
	// Window is the sliding window length.
	Window time.Duration
	// KeyFunc extracts the limit key from the request; defaults to client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// Middleware returns chi-compatible middleware enforcing cfg.
// Rejected requests get 429 with a Retry-After header.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.Window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}),
	)
}
