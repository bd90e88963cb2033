package nlp

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	cause := errors.New("boom")

	rl := providerError("openai", http.StatusTooManyRequests, time.Second, cause)
	assert.ErrorIs(t, rl, ErrRateLimit)
	assert.ErrorIs(t, rl, &RateLimitError{})
	assert.ErrorIs(t, rl, cause)
	var rateErr *RateLimitError
	if assert.ErrorAs(t, rl, &rateErr) {
		assert.Equal(t, time.Second, rateErr.RetryAfter)
		assert.Equal(t, "openai", rateErr.Provider)
	}

	st := providerError("anthropic", http.StatusBadGateway, 0, cause)
	assert.NotErrorIs(t, st, ErrRateLimit)
	var statusErr *StatusError
	if assert.ErrorAs(t, st, &statusErr) {
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	}
	assert.Contains(t, st.Error(), "status 502")

	plain := providerError("openai", 0, 0, cause)
	assert.ErrorIs(t, plain, cause)
	assert.False(t, errors.As(plain, &statusErr))
}

func TestStatusErrorTemporary(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := &StatusError{Provider: "p", StatusCode: tt.status, Err: errors.New("x")}
			assert.Equal(t, tt.want, err.Temporary())
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		want   time.Duration
	}{
		{"nil header", nil, 0},
		{"missing", http.Header{}, 0},
		{"seconds", http.Header{"Retry-After": []string{"3"}}, 3 * time.Second},
		{"http date", http.Header{"Retry-After": []string{"Wed, 21 Oct 2026 07:28:00 GMT"}}, 0},
		{"negative", http.Header{"Retry-After": []string{"-1"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.header))
		})
	}
}
