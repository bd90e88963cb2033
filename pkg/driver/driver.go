package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soundprediction/recall/pkg/types"
)

// GraphProvider represents the type of graph database provider
type GraphProvider string

const (
	GraphProviderNeo4j   GraphProvider = "neo4j"
	GraphProviderLadybug GraphProvider = "ladybug"
)

// Retrieval bounds shared by every FactStore implementation.
const (
	// MinSimilarity is the cosine floor for vector and seed-entity search.
	MinSimilarity = 0.7
	// DefaultVectorLimit is the candidate count when the caller sets no limit.
	DefaultVectorLimit = 100
	// MaxSeedEntities is the number of entities a traversal starts from.
	MaxSeedEntities = 3
	// MinTraversalDepth and MaxTraversalDepth clamp the traversal depth.
	MinTraversalDepth = 1
	MaxTraversalDepth = 10
	// MaxTraversalResults caps the statements a traversal may return.
	MaxTraversalResults = 500
	// DefaultQueryTimeout bounds a single store round trip.
	DefaultQueryTimeout = 10 * time.Second
)

var (
	// ErrDriverClosed is returned by calls made after Close.
	ErrDriverClosed = errors.New("driver is closed")
	// ErrEmptyEmbedding is returned by vector operations given no vector.
	ErrEmptyEmbedding = errors.New("embedding cannot be empty")
)

// FactStore is the read side of the temporal knowledge graph plus the two
// narrow writes retrieval performs. Every search method restricts results to
// filter.UserID and applies the filter's temporal, space and type clauses.
type FactStore interface {
	// FulltextSearch runs an indexed full-text query over statement facts.
	// query must already be sanitized for the store's query syntax.
	FulltextSearch(ctx context.Context, query string, filter types.StatementFilter, limit int) ([]*types.Statement, error)

	// VectorSearch returns statements whose fact embedding is at least
	// minScore similar to embedding, best first.
	VectorSearch(ctx context.Context, embedding []float32, filter types.StatementFilter, limit int, minScore float64) ([]*types.Statement, error)

	// EntitySearch returns the user's entities nearest to embedding by name.
	EntitySearch(ctx context.Context, embedding []float32, userID string, limit int, minScore float64) ([]*types.Entity, error)

	// Traverse collects statements reachable from the seed entities within
	// depth hops, ordered by hop count then recency.
	Traverse(ctx context.Context, seedUUIDs []string, depth int, filter types.StatementFilter, limit int) ([]*types.Statement, error)

	// EpisodesForStatements resolves the source episodes of the given
	// statements through the provenance relationship, deduplicated.
	EpisodesForStatements(ctx context.Context, userID string, statementUUIDs []string) ([]*types.Episode, error)

	// IncrementRecallCount adds one to recall_count on each statement or
	// episode node in uuids.
	IncrementRecallCount(ctx context.Context, userID string, uuids []string) error

	// EnsureIndexes creates the full-text and vector indexes retrieval needs.
	EnsureIndexes(ctx context.Context, dimensions int) error

	// VerifyConnectivity checks that the store is reachable.
	VerifyConnectivity(ctx context.Context) error

	Provider() GraphProvider
	Close(ctx context.Context) error
}

// Config holds connection settings for a FactStore.
type Config struct {
	Provider     GraphProvider
	URI          string
	Username     string
	Password     string
	Database     string
	QueryTimeout time.Duration
}

// NewFactStore opens the backend named by cfg.Provider. For Ladybug, URI is
// the database path.
func NewFactStore(cfg Config) (FactStore, error) {
	switch cfg.Provider {
	case GraphProviderNeo4j, "":
		d, err := NewNeo4jDriverWithConfig(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case GraphProviderLadybug:
		lb := DefaultLadybugDriverConfig()
		if cfg.URI != "" {
			lb.DBPath = cfg.URI
		}
		if cfg.QueryTimeout != 0 {
			lb.QueryTimeout = cfg.QueryTimeout
		}
		d, err := NewLadybugDriverWithConfig(lb)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported graph provider %q", cfg.Provider)
	}
}

// ClampDepth bounds a traversal depth to [MinTraversalDepth, MaxTraversalDepth].
func ClampDepth(depth int) int {
	if depth < MinTraversalDepth {
		return MinTraversalDepth
	}
	if depth > MaxTraversalDepth {
		return MaxTraversalDepth
	}
	return depth
}

// withTimeout derives a context bounded by timeout, leaving ctx untouched
// when timeout is not positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// float32sToFloat64s widens a vector for drivers that only bind float64 lists.
func float32sToFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
