package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundprediction/recall/pkg/crossencoder"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

// Strategy selects how retriever lists are fused.
type Strategy string

const (
	// StrategyAuto picks external rerank, classification, or multi-factor
	// scoring with MMR depending on configuration and which sources returned.
	StrategyAuto Strategy = "auto"
	// StrategyRRF always uses weighted reciprocal rank fusion.
	StrategyRRF Strategy = "rrf"
)

// RankerConfig configures a Ranker.
type RankerConfig struct {
	Strategy Strategy
	// RerankThreshold is the minimum external reranker score kept.
	RerankThreshold float64
	// ClassifierConcurrency caps in-flight classifier calls; zero is unbounded.
	ClassifierConcurrency int
	// PerSourceCap limits each source's share of the union sent to the
	// external reranker.
	PerSourceCap int
	MMRLambda    float64
}

// Ranker fuses the retriever lists into one ranked list.
type Ranker struct {
	config     RankerConfig
	reranker   crossencoder.Reranker
	classifier crossencoder.Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewRanker creates a Ranker. reranker and classifier are optional.
func NewRanker(config RankerConfig, reranker crossencoder.Reranker, classifier crossencoder.Classifier, logger *slog.Logger) *Ranker {
	if config.Strategy == "" {
		config.Strategy = StrategyAuto
	}
	if config.PerSourceCap <= 0 {
		config.PerSourceCap = PerSourceCap
	}
	if config.MMRLambda <= 0 || config.MMRLambda > 1 {
		config.MMRLambda = DefaultMMRLambda
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		config:     config,
		reranker:   reranker,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Rank fuses candidates for query and reports the method used. limit is the
// caller's result limit and only sizes the MMR cap; the adaptive filter
// does the final cut.
func (r *Ranker) Rank(ctx context.Context, query string, candidates *Candidates, limit int) ([]*ScoredStatement, types.SearchMethod) {
	if candidates == nil || candidates.Empty() {
		return []*ScoredStatement{}, types.SearchMethodNone
	}

	if r.config.Strategy == StrategyRRF {
		return WeightedRRF(candidates, DefaultRankConstant), types.SearchMethodReciprocalRank
	}

	if r.reranker != nil {
		return r.externalRerank(ctx, query, candidates)
	}

	if len(candidates.NonEmptySources()) == 1 && r.classifier != nil {
		return r.classify(ctx, query, candidates), types.SearchMethodCrossEncoder
	}

	scored := MultiFactorScore(Merge(candidates, 0), r.now())
	return MaximalMarginalRelevance(scored, r.config.MMRLambda, MMRMaxResults(limit)), types.SearchMethodMultiFactorMMR
}

// callReranker reports a reranker panic as an error.
func (r *Ranker) callReranker(ctx context.Context, query string, documents []string) (results []crossencoder.RerankResult, err error) {
	defer utils.CapturePanic(&err)
	return r.reranker.Rerank(ctx, query, documents)
}

// externalRerank sends the capped union to the external reranker in one call.
// Any failure returns the union unscored.
func (r *Ranker) externalRerank(ctx context.Context, query string, candidates *Candidates) ([]*ScoredStatement, types.SearchMethod) {
	union := Merge(candidates, r.config.PerSourceCap)

	documents := make([]string, len(union))
	for i, item := range union {
		documents[i] = item.Statement.Fact
	}

	results, err := r.callReranker(ctx, query, documents)
	if err != nil {
		r.logger.Warn("external rerank failed, returning unscored union",
			"candidates", len(union),
			"error", err)
		return union, types.SearchMethodRerankFallback
	}

	kept := make([]*ScoredStatement, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(union) || res.RelevanceScore < r.config.RerankThreshold {
			continue
		}
		item := union[res.Index]
		if item.ScoreSource == ScoreSourceRerank {
			continue
		}
		item.ChosenScore = res.RelevanceScore
		item.ScoreSource = ScoreSourceRerank
		kept = append(kept, item)
	}
	return kept, types.SearchMethodExternalRerank
}

// classify keeps only candidates the classifier judges relevant, in source
// order.
func (r *Ranker) classify(ctx context.Context, query string, candidates *Candidates) []*ScoredStatement {
	union := Merge(candidates, 0)

	passages := make([]string, len(union))
	for i, item := range union {
		passages[i] = item.Statement.Fact
	}

	verdicts := crossencoder.ClassifyAll(ctx, r.classifier, query, passages, r.config.ClassifierConcurrency, r.logger)

	kept := make([]*ScoredStatement, 0, len(union))
	for i, item := range union {
		if !verdicts[i] {
			continue
		}
		item.ChosenScore = 1
		item.ScoreSource = ScoreSourceClassifier
		kept = append(kept, item)
	}
	return kept
}
