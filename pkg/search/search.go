package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/soundprediction/recall/pkg/driver"
	"github.com/soundprediction/recall/pkg/embedder"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

// ErrNoEmbedder is returned by embedding-based retrievers when the Searcher
// was built without an embedder.
var ErrNoEmbedder = errors.New("no embedder configured")

// Searcher runs the three retrievers against a FactStore. Retrievers never
// fail a search: each logs its error and contributes an empty list.
type Searcher struct {
	store    driver.FactStore
	embedder embedder.Client
	logger   *slog.Logger
}

// NewSearcher creates a Searcher. embedder may be nil, in which case only
// lexical retrieval produces results.
func NewSearcher(store driver.FactStore, embedderClient embedder.Client, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		store:    store,
		embedder: embedderClient,
		logger:   logger,
	}
}

// Retrieve embeds the query once and runs the lexical, vector and graph
// retrievers concurrently. If the embedding fails, the vector and graph
// retrievers contribute nothing and lexical retrieval still runs. A nil opts
// takes the defaults.
func (s *Searcher) Retrieve(ctx context.Context, query, userID string, opts *types.SearchOptions) *Candidates {
	if strings.TrimSpace(query) == "" {
		return &Candidates{}
	}
	opts = ensureOptions(opts)

	embedding, embedErr := s.embedQuery(ctx, query)
	if embedErr != nil {
		s.logger.Warn("query embedding failed, skipping vector and graph retrieval",
			"user_id", userID,
			"error", embedErr)
	}

	results, errs := utils.ExecuteWithResults(ctx, len(Sources),
		func() ([]*types.Statement, error) {
			return s.lexical(ctx, query, userID, opts)
		},
		func() ([]*types.Statement, error) {
			if embedErr != nil {
				return nil, nil
			}
			return s.vector(ctx, embedding, userID, opts)
		},
		func() ([]*types.Statement, error) {
			if embedErr != nil {
				return nil, nil
			}
			return s.graph(ctx, embedding, userID, opts)
		},
	)

	out := &Candidates{}
	for i, src := range Sources {
		list := results[i]
		if errs[i] != nil {
			s.logger.Warn("retriever failed", "source", string(src), "user_id", userID, "error", errs[i])
			list = nil
		}
		switch src {
		case SourceLexical:
			out.Lexical = list
		case SourceVector:
			out.Vector = list
		case SourceGraph:
			out.Graph = list
		}
	}
	return out
}

// LexicalSearch runs the full-text retriever on its own.
func (s *Searcher) LexicalSearch(ctx context.Context, query, userID string, opts *types.SearchOptions) []*types.Statement {
	opts = ensureOptions(opts)
	out, err := s.lexical(ctx, query, userID, opts)
	if err != nil {
		s.logger.Warn("retriever failed", "source", string(SourceLexical), "user_id", userID, "error", err)
		return []*types.Statement{}
	}
	return out
}

// VectorSearch embeds query and runs the vector retriever on its own.
func (s *Searcher) VectorSearch(ctx context.Context, query, userID string, opts *types.SearchOptions) []*types.Statement {
	opts = ensureOptions(opts)
	out, err := s.withEmbedding(ctx, query, func(emb []float32) ([]*types.Statement, error) {
		return s.vector(ctx, emb, userID, opts)
	})
	if err != nil {
		s.logger.Warn("retriever failed", "source", string(SourceVector), "user_id", userID, "error", err)
		return []*types.Statement{}
	}
	return out
}

// GraphSearch embeds query and runs the traversal retriever on its own.
func (s *Searcher) GraphSearch(ctx context.Context, query, userID string, opts *types.SearchOptions) []*types.Statement {
	opts = ensureOptions(opts)
	out, err := s.withEmbedding(ctx, query, func(emb []float32) ([]*types.Statement, error) {
		return s.graph(ctx, emb, userID, opts)
	})
	if err != nil {
		s.logger.Warn("retriever failed", "source", string(SourceGraph), "user_id", userID, "error", err)
		return []*types.Statement{}
	}
	return out
}

func (s *Searcher) withEmbedding(ctx context.Context, query string, fn func([]float32) ([]*types.Statement, error)) ([]*types.Statement, error) {
	emb, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return fn(emb)
}

func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}
	emb, err := s.embedder.EmbedSingle(ctx, strings.ReplaceAll(query, "\n", " "))
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	if len(emb) == 0 {
		return nil, driver.ErrEmptyEmbedding
	}
	return emb, nil
}

func ensureOptions(opts *types.SearchOptions) *types.SearchOptions {
	if opts == nil {
		return opts.WithDefaults(time.Now())
	}
	return opts
}

// retrievalLimit is the candidate count a retriever asks the store for.
func retrievalLimit(opts *types.SearchOptions) int {
	if opts == nil || opts.Limit <= 0 {
		return driver.DefaultVectorLimit
	}
	return opts.Limit
}

func (s *Searcher) lexical(ctx context.Context, query, userID string, opts *types.SearchOptions) ([]*types.Statement, error) {
	sanitized := SanitizeQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	filter := opts.Filter(userID)
	statements, err := s.store.FulltextSearch(ctx, sanitized, filter, retrievalLimit(opts))
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	return applyTimeFilter(statements, filter), nil
}

func (s *Searcher) vector(ctx context.Context, embedding []float32, userID string, opts *types.SearchOptions) ([]*types.Statement, error) {
	filter := opts.Filter(userID)
	statements, err := s.store.VectorSearch(ctx, embedding, filter, retrievalLimit(opts), driver.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return applyTimeFilter(statements, filter), nil
}

func (s *Searcher) graph(ctx context.Context, embedding []float32, userID string, opts *types.SearchOptions) ([]*types.Statement, error) {
	seeds, err := s.store.EntitySearch(ctx, embedding, userID, driver.MaxSeedEntities, driver.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("seed entity search: %w", err)
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	seedUUIDs := make([]string, 0, len(seeds))
	for _, e := range seeds {
		seedUUIDs = append(seedUUIDs, e.Uuid)
	}

	depth := types.DefaultMaxBfsDepth
	if opts != nil && opts.MaxBfsDepth > 0 {
		depth = opts.MaxBfsDepth
	}

	filter := opts.Filter(userID)
	statements, err := s.store.Traverse(ctx, seedUUIDs, driver.ClampDepth(depth), filter, driver.MaxTraversalResults)
	if err != nil {
		return nil, fmt.Errorf("graph traversal: %w", err)
	}
	return applyTimeFilter(statements, filter), nil
}

// applyTimeFilter re-checks the temporal window in memory, guarding against
// stores that index validity coarsely.
func applyTimeFilter(statements []*types.Statement, filter types.StatementFilter) []*types.Statement {
	out := statements[:0:0]
	for _, s := range statements {
		if s != nil && filter.MatchesTime(s) {
			out = append(out, s)
		}
	}
	return out
}
