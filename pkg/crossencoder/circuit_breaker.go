package crossencoder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/recall/pkg/alert"
	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/nlp"
)

// CircuitBreakerReranker wraps a Reranker with circuit breaking logic. While
// the breaker is open, Rerank fails immediately with ErrCircuitOpen.
type CircuitBreakerReranker struct {
	reranker Reranker
	cb       *gobreaker.CircuitBreaker
}

// NewCircuitBreakerReranker creates a new circuit breaker reranker
func NewCircuitBreakerReranker(reranker Reranker, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string, logger *slog.Logger) *CircuitBreakerReranker {
	return &CircuitBreakerReranker{
		reranker: reranker,
		cb:       gobreaker.NewCircuitBreaker(nlp.BreakerSettings(name, cfg, alerter, logger)),
	}
}

// Rerank implements Reranker.
func (c *CircuitBreakerReranker) Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.reranker.Rerank(ctx, query, documents)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return resp.([]RerankResult), nil
}

// State reports the breaker's current state.
func (c *CircuitBreakerReranker) State() gobreaker.State {
	return c.cb.State()
}

// Close implements Reranker.
func (c *CircuitBreakerReranker) Close() error {
	return c.reranker.Close()
}
