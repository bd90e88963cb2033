package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"time"

	"github.com/soundprediction/recall/pkg/types"
)

// RetryConfig holds configuration for retry behavior. The defaults suit a
// call made inside a search request, where the whole budget is a few seconds.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first (default 2).
	MaxRetries int
	// InitialDelay is the wait before the first retry (default 250ms).
	InitialDelay time.Duration
	// MaxDelay caps any single wait, including a provider's Retry-After (default 2s).
	MaxDelay time.Duration
	// BackoffMultiplier grows the wait between retries (default 2).
	BackoffMultiplier float64
	Logger            *slog.Logger
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        2,
		InitialDelay:      250 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient retries rate limits, timeouts and 5xx responses with
// exponential backoff. Any other error is returned at once.
type RetryClient struct {
	client Client
	config RetryConfig
	logger *slog.Logger
}

// NewRetryClient wraps client. A nil config takes DefaultRetryConfig.
func NewRetryClient(client Client, config *RetryConfig) *RetryClient {
	cfg := *DefaultRetryConfig()
	if config != nil {
		if config.MaxRetries >= 0 {
			cfg.MaxRetries = config.MaxRetries
		}
		if config.InitialDelay > 0 {
			cfg.InitialDelay = config.InitialDelay
		}
		if config.MaxDelay > 0 {
			cfg.MaxDelay = config.MaxDelay
		}
		if config.BackoffMultiplier > 0 {
			cfg.BackoffMultiplier = config.BackoffMultiplier
		}
		cfg.Logger = config.Logger
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{client: client, config: cfg, logger: logger}
}

// Chat implements Client.
func (r *RetryClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, r.delay(attempt, lastErr)); err != nil {
				return nil, fmt.Errorf("retry aborted after %d attempts: %w", attempt, errors.Join(err, lastErr))
			}
		}

		resp, err := r.client.Chat(ctx, messages)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}
		r.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"max_retries", r.config.MaxRetries,
			"error", err)
	}
	return nil, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// Close implements Client.
func (r *RetryClient) Close() error {
	return r.client.Close()
}

// delay is InitialDelay·Multiplier^(attempt-1), or the provider's
// Retry-After when larger, capped at MaxDelay.
func (r *RetryClient) delay(attempt int, lastErr error) time.Duration {
	d := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1)))

	var rl *RateLimitError
	if errors.As(lastErr, &rl) && rl.RetryAfter > d {
		d = rl.RetryAfter
	}
	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isRetryable reports whether err is transient. Cancellation by the caller
// never is.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
