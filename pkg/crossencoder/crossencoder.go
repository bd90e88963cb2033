package crossencoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/recall/pkg/alert"
	"github.com/soundprediction/recall/pkg/config"
)

var (
	// ErrMissingAPIKey is returned when a hosted reranker has no credentials.
	ErrMissingAPIKey = errors.New("reranker api key is not configured")

	// ErrCircuitOpen is returned while the reranker breaker is open.
	ErrCircuitOpen = errors.New("reranker circuit breaker is open")
)

// Provider represents the type of reranker backend
type Provider string

const (
	// ProviderCohere uses a Cohere-compatible /rerank HTTP endpoint
	ProviderCohere Provider = "cohere"

	// ProviderEmbedEverything uses a local cross-encoder model
	ProviderEmbedEverything Provider = "embedeverything"
)

const (
	DefaultCohereURL   = "https://api.cohere.com/v2/rerank"
	DefaultCohereModel = "rerank-english-v3.0"
	DefaultLocalModel  = "BAAI/bge-reranker-base"
	DefaultTimeout     = 10 * time.Second
)

// DefaultModel returns the model used by provider when none is configured.
func DefaultModel(provider Provider) string {
	if provider == ProviderEmbedEverything {
		return DefaultLocalModel
	}
	return DefaultCohereModel
}

// RerankResult is the relevance score of one document, identified by its
// position in the request.
type RerankResult struct {
	Index          int
	RelevanceScore float64
}

// Reranker scores documents against a query in a single batched call.
// Results are ordered by descending relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error)
	Close() error
}

// NewReranker builds the reranker described by cfg. The returned reranker is
// wrapped in a circuit breaker when breakerCfg is enabled. A nil reranker and
// nil error are returned when cfg does not configure one.
func NewReranker(cfg config.RerankerConfig, breakerCfg config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger) (Reranker, error) {
	if !cfg.Configured() {
		return nil, nil
	}

	provider := Provider(cfg.Provider)
	if cfg.Model == "" {
		cfg.Model = DefaultModel(provider)
	}

	var (
		reranker Reranker
		err      error
	)
	switch provider {
	case ProviderCohere, "":
		reranker, err = NewCohereReranker(CohereConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		})
	case ProviderEmbedEverything:
		reranker, err = NewEmbedEverythingReranker(cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported reranker provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if breakerCfg.Enabled {
		return NewCircuitBreakerReranker(reranker, breakerCfg, alerter, "reranker", logger), nil
	}
	return reranker, nil
}
