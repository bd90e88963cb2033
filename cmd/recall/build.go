package recall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/alert"
	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/crossencoder"
	"github.com/soundprediction/recall/pkg/driver"
	"github.com/soundprediction/recall/pkg/embedder"
	"github.com/soundprediction/recall/pkg/nlp"
	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/telemetry"
	"github.com/soundprediction/recall/pkg/types"
)

// openStore connects the fact store named by cfg.Database.
func openStore(ctx context.Context, cfg *config.Config) (driver.FactStore, error) {
	store, err := driver.NewFactStore(driver.Config{
		Provider:     driver.GraphProvider(cfg.Database.Driver),
		URI:          cfg.Database.URI,
		Username:     cfg.Database.Username,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		QueryTimeout: time.Duration(cfg.Database.QueryTimeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}
	if err := store.VerifyConnectivity(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("store is unreachable: %w", err)
	}
	return store, nil
}

// buildEmbedder returns the configured embedding client, wrapped in the
// query cache when enabled. It returns nil when no provider can run, in
// which case only lexical retrieval is used.
func buildEmbedder(cfg config.EmbeddingConfig, logger *slog.Logger) (embedder.Client, error) {
	embedderConfig := embedder.Config{
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Dimensions: cfg.Dimensions,
	}

	var client embedder.Client
	switch cfg.Provider {
	case "openai", "":
		if cfg.APIKey == "" {
			logger.Warn("No embedding API key, vector and graph retrieval disabled")
			return nil, nil
		}
		client = embedder.NewOpenAIEmbedder(cfg.APIKey, embedderConfig)
	case "embedeverything":
		local, err := embedder.NewEmbedEverythingClient(embedderConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		client = local
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if !cfg.Cache.Enabled {
		return client, nil
	}
	cached, err := embedder.NewCachedClient(client, cfg.Model, embedder.CacheConfig{
		Dir: cfg.Cache.Dir,
		TTL: time.Duration(cfg.Cache.TTL) * time.Second,
	}, logger)
	if err != nil {
		logger.Warn("Embedding cache disabled", "dir", cfg.Cache.Dir, "error", err)
		return client, nil
	}
	return cached, nil
}

// buildClassifier returns the LLM relevance classifier, or nil when it is
// disabled or has no credentials.
func buildClassifier(cfg *config.Config, alerter alert.Alerter, logger *slog.Logger) (crossencoder.Classifier, error) {
	c := cfg.Classifier
	if !c.Enabled || c.APIKey == "" {
		return nil, nil
	}

	nlpConfig := nlp.Config{
		Model:       c.Model,
		Temperature: nlp.Float32(0),
		MaxTokens:   nlp.Int(1),
		BaseURL:     c.BaseURL,
	}

	var base nlp.Client
	switch c.Provider {
	case "openai", "":
		client, err := nlp.NewOpenAIClient(c.APIKey, nlpConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create classifier client: %w", err)
		}
		base = client
	case "anthropic":
		client, err := nlp.NewAnthropicClient(c.APIKey, nlpConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create classifier client: %w", err)
		}
		base = client
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", c.Provider)
	}

	client := base
	if c.MaxRetries > 0 {
		retry := nlp.DefaultRetryConfig()
		retry.MaxRetries = c.MaxRetries
		retry.Logger = logger
		client = nlp.NewRetryClient(base, retry)
	}
	if cfg.CircuitBreaker.Enabled {
		client = nlp.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, "classifier", logger)
	}
	return crossencoder.NewLLMClassifier(client), nil
}

// searchDefaults maps the configured search defaults onto SearchOptions.
func searchDefaults(cfg config.SearchConfig) types.SearchOptions {
	return types.SearchOptions{
		Limit:          cfg.DefaultLimit,
		MaxBfsDepth:    cfg.MaxBfsDepth,
		ScoreThreshold: cfg.ScoreThreshold,
		MinResults:     cfg.MinResults,
	}
}

// buildClient wires every collaborator described by cfg into a recall
// client. The client owns them all; closing it releases them.
func buildClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*recall.Client, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var built cleanup
	built.add(func() error { return store.Close(ctx) })
	fail := func(err error) (*recall.Client, error) {
		if closeErr := built.run(); closeErr != nil {
			logger.Warn("failed to release partially built client", "error", closeErr)
		}
		return nil, err
	}

	embedderClient, err := buildEmbedder(cfg.Embedding, logger)
	if err != nil {
		return fail(err)
	}
	if embedderClient != nil {
		built.add(embedderClient.Close)
	}

	alerter := alert.New(cfg.Alert)

	classifier, err := buildClassifier(cfg, alerter, logger)
	if err != nil {
		return fail(err)
	}
	if closer, ok := classifier.(io.Closer); ok {
		built.add(closer.Close)
	}

	reranker, err := crossencoder.NewReranker(cfg.Reranker, cfg.CircuitBreaker, alerter, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to create reranker: %w", err))
	}
	if reranker != nil {
		built.add(reranker.Close)
	}

	sinks, err := telemetry.NewSinks(cfg.Telemetry, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to create telemetry sinks: %w", err))
	}
	built.add(func() error { return sinks.Close(ctx) })

	var sink telemetry.Sink
	if sinks.Len() > 0 {
		sink = sinks
	}

	client, err := recall.NewClient(store, embedderClient, &recall.Config{
		Ranker: search.RankerConfig{
			Strategy:              search.Strategy(cfg.Search.Strategy),
			RerankThreshold:       cfg.Reranker.Threshold,
			ClassifierConcurrency: cfg.Classifier.MaxConcurrency,
		},
		Reranker:       reranker,
		Classifier:     classifier,
		Sink:           sink,
		SearchDefaults: searchDefaults(cfg.Search),
		QueueSize:      cfg.Search.QueueSize,
	}, logger)
	if err != nil {
		return fail(err)
	}

	logger.Info("Recall initialized",
		"driver", cfg.Database.Driver,
		"embedder", embedderClient != nil,
		"classifier", classifier != nil,
		"reranker", reranker != nil,
		"sinks", sinks.Len())
	return client, nil
}

// cleanup releases partially built collaborators in reverse order.
type cleanup []func() error

func (c *cleanup) add(fn func() error) { *c = append(*c, fn) }

func (c cleanup) run() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
