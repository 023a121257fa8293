package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when registration input is missing or malformed.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound is returned for tokens that were never registered or have
	// already been evicted.
	ErrNotFound = errors.New("token not found")

	// ErrExpired is returned for tokens whose registry entry outlived the URL TTL.
	// The entry is evicted as part of the lookup that reports it.
	ErrExpired = errors.New("token expired")
)

// UpstreamError describes a failed origin fetch. Its message carries the origin
// URL and must only ever be logged, never written to a client.
type UpstreamError struct {
	URL    string
	Status int // zero when the request never produced a response
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("origin %s: status %d: %v", e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("origin %s: status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("origin %s: %v", e.URL, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
