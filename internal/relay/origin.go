package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Origin fetches content from upstream servers.
type Origin interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

const (
	// DefaultOriginTimeout bounds a whole origin request, body included.
	DefaultOriginTimeout = 15 * time.Second
	// DefaultOriginMaxBytes caps a single origin response body.
	DefaultOriginMaxBytes = 64 << 20

	originUserAgent = "hls-relay/1.0"
)

// ErrBodyTooLarge is wrapped in the UpstreamError for oversized origin bodies.
var ErrBodyTooLarge = errors.New("origin body exceeds size limit")

// HTTPOrigin is an Origin backed by an *http.Client.
type HTTPOrigin struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPOrigin returns an HTTPOrigin. A nil client gets one with
// DefaultOriginTimeout; maxBytes <= 0 means DefaultOriginMaxBytes.
func NewHTTPOrigin(client *http.Client, maxBytes int64) *HTTPOrigin {
	if client == nil {
		client = &http.Client{Timeout: DefaultOriginTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultOriginMaxBytes
	}
	return &HTTPOrigin{client: client, maxBytes: maxBytes}
}

// Fetch implements Origin.Fetch. Every failure, including non-2xx responses,
// is returned as an *UpstreamError.
func (o *HTTPOrigin) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", originUserAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &UpstreamError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
	if err != nil {
		return nil, &UpstreamError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > o.maxBytes {
		return nil, &UpstreamError{URL: url, Status: resp.StatusCode, Err: ErrBodyTooLarge}
	}
	return body, nil
}
