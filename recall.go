package recall

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/soundprediction/recall/pkg/crossencoder"
	"github.com/soundprediction/recall/pkg/driver"
	"github.com/soundprediction/recall/pkg/embedder"
	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/telemetry"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

var (
	// ErrEmptyQuery is returned when the query is blank.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrMissingUserID is returned when no user is given.
	ErrMissingUserID = errors.New("user_id cannot be empty")
	// ErrNilStore is returned by NewClient without a FactStore.
	ErrNilStore = errors.New("fact store is required")
)

// Recall is the retrieval surface shared by the HTTP server, the tool server
// and the CLI.
type Recall interface {
	// Search returns the facts and episodes relevant to query for userID.
	// opts may be nil.
	Search(ctx context.Context, query, userID string, opts *types.SearchOptions) (*types.SearchResult, error)

	// VerifyConnectivity checks that the graph store is reachable.
	VerifyConnectivity(ctx context.Context) error

	// Close drains background work and releases every collaborator.
	Close(ctx context.Context) error
}

// Config holds the collaborators and settings of a Client. Every field is
// optional.
type Config struct {
	// Ranker selects and tunes the fusion strategy.
	Ranker search.RankerConfig
	// Reranker is the external reranker. When nil, classification or
	// multi-factor scoring is used instead.
	Reranker crossencoder.Reranker
	// Classifier judges single-source candidates.
	Classifier crossencoder.Classifier
	// Sink receives one RecallLog per search.
	Sink telemetry.Sink

	// SearchDefaults fills options the caller leaves at zero, before the
	// built-in defaults apply.
	SearchDefaults types.SearchOptions

	QueueSize    int
	QueueWorkers int
	TaskTimeout  time.Duration
}

// Client is the main implementation of the Recall interface.
type Client struct {
	store    driver.FactStore
	embedder embedder.Client
	searcher *search.Searcher
	ranker   *search.Ranker
	reranker crossencoder.Reranker
	// classifier is set only when the configured classifier holds resources.
	classifier io.Closer
	sink       telemetry.Sink
	queue      *utils.BackgroundQueue
	defaults   types.SearchOptions
	logger     *slog.Logger
	now        func() time.Time
}

var _ Recall = (*Client)(nil)

// NewClient creates a Client over store. embedderClient may be nil, in which
// case only lexical retrieval runs.
func NewClient(store driver.FactStore, embedderClient embedder.Client, config *Config, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	classifier, _ := config.Classifier.(io.Closer)

	return &Client{
		store:      store,
		embedder:   embedderClient,
		searcher:   search.NewSearcher(store, embedderClient, logger),
		ranker:     search.NewRanker(config.Ranker, config.Reranker, config.Classifier, logger),
		reranker:   config.Reranker,
		classifier: classifier,
		sink:       config.Sink,
		queue:      utils.NewBackgroundQueue(config.QueueSize, config.QueueWorkers, config.TaskTimeout, logger),
		defaults:   config.SearchDefaults,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Searcher exposes the individual retrievers.
func (c *Client) Searcher() *search.Searcher {
	return c.searcher
}

// VerifyConnectivity checks that the graph store is reachable.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.store.VerifyConnectivity(ctx)
}

// Close waits for queued side effects until ctx expires, then closes the
// sink, the reranker, the classifier, the embedder and the store.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if err := c.queue.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.sink != nil {
		if err := c.sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.reranker != nil {
		if err := c.reranker.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.classifier != nil {
		if err := c.classifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.store.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
