package nlp

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrRateLimit matches every RateLimitError.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// RateLimitError is returned when a provider answers 429. RetryAfter is zero
// when the provider sent no hint.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, ErrRateLimit)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, ErrRateLimit, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Is matches ErrRateLimit and any *RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimit {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// providerError maps an HTTP status from provider into the package's error
// types. A zero status wraps err unchanged.
func providerError(provider string, status int, retryAfter time.Duration, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Provider: provider, RetryAfter: retryAfter, Err: err}
	case status > 0:
		return &StatusError{Provider: provider, StatusCode: status, Err: err}
	default:
		return fmt.Errorf("%s: %w", provider, err)
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := time.ParseDuration(v + "s"); err == nil && secs > 0 {
		return secs
	}
	return 0
}
