package crossencoder

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// EmbedEverythingReranker runs a local cross-encoder model through
// go-embedeverything. It needs no credentials and is selected with the
// embedeverything provider.
type EmbedEverythingReranker struct {
	reranker *embedder.Reranker
	model    string

	mu sync.Mutex
}

// NewEmbedEverythingReranker loads model, downloading it on first use.
func NewEmbedEverythingReranker(model string) (*EmbedEverythingReranker, error) {
	if model == "" {
		model = DefaultLocalModel
	}
	reranker, err := embedder.NewReranker(model)
	if err != nil {
		return nil, fmt.Errorf("failed to create reranker: %w", err)
	}

	return &EmbedEverythingReranker{
		reranker: reranker,
		model:    model,
	}, nil
}

// Rerank implements Reranker.
func (e *EmbedEverythingReranker) Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error) {
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	// go-embedeverything does not support context yet
	scored, err := e.reranker.Rerank(query, documents)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to rerank documents: %w", err)
	}

	texts := make([]string, len(scored))
	scores := make([]float64, len(scored))
	for i, r := range scored {
		texts[i] = r.Text
		scores[i] = float64(r.Score)
	}
	results := matchToIndices(documents, texts, scores)

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	return results, nil
}

// matchToIndices maps scored texts back to their request positions. The
// model returns texts rather than indices, so duplicate documents are
// assigned in request order.
func matchToIndices(documents, texts []string, scores []float64) []RerankResult {
	positions := make(map[string][]int, len(documents))
	for i, doc := range documents {
		positions[doc] = append(positions[doc], i)
	}

	results := make([]RerankResult, 0, len(texts))
	for i, text := range texts {
		queue := positions[text]
		if len(queue) == 0 {
			continue
		}
		results = append(results, RerankResult{Index: queue[0], RelevanceScore: scores[i]})
		positions[text] = queue[1:]
	}
	return results
}

// Close releases the native model.
func (e *EmbedEverythingReranker) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reranker.Close()
	return nil
}
