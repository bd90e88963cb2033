package search

import (
	"math"

	"github.com/soundprediction/recall/pkg/utils"
)

const (
	// DefaultMMRLambda balances relevance (1) against diversity (0).
	DefaultMMRLambda = 0.7
	// DefaultMMRMaxResults caps MMR output when the caller sets no limit.
	DefaultMMRMaxResults = 100

	mmrWindow          = 5
	mmrDuplicateCutoff = 0.95
	mmrPruneAfter      = 4
	mmrPruneRatio      = 0.5
)

// MMRMaxResults is the MMR output cap for a search limit: twice the limit,
// leaving the adaptive filter room to cut.
func MMRMaxResults(limit int) int {
	if limit <= 0 {
		return DefaultMMRMaxResults
	}
	return limit * 2
}

// MaximalMarginalRelevance greedily selects at most maxResults items,
// scoring each remaining candidate as lambda*relevance minus
// (1-lambda)*similarity to the closest recently selected item. Relevance is
// ChosenScore; similarity compares fact embeddings against the last few
// selections only, and a missing embedding counts as dissimilar.
func MaximalMarginalRelevance(items []*ScoredStatement, lambda float64, maxResults int) []*ScoredStatement {
	if len(items) == 0 || maxResults <= 0 {
		return []*ScoredStatement{}
	}
	if lambda < 0 || lambda > 1 {
		lambda = DefaultMMRLambda
	}

	remaining := make([]*ScoredStatement, len(items))
	copy(remaining, items)
	selected := make([]*ScoredStatement, 0, min(maxResults, len(items)))
	weakest := math.Inf(1)

	for len(selected) < maxResults && len(remaining) > 0 {
		if len(selected) >= mmrPruneAfter {
			remaining = pruneBelow(remaining, weakest*mmrPruneRatio)
			if len(remaining) == 0 {
				break
			}
		}

		best, bestScore := 0, math.Inf(-1)
		for i, candidate := range remaining {
			score := lambda*candidate.ChosenScore - (1-lambda)*maxWindowSimilarity(candidate, selected)
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		chosen := remaining[best]
		selected = append(selected, chosen)
		if chosen.ChosenScore < weakest {
			weakest = chosen.ChosenScore
		}
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	return selected
}

func maxWindowSimilarity(candidate *ScoredStatement, selected []*ScoredStatement) float64 {
	emb := candidate.Statement.FactEmbedding
	if len(emb) == 0 {
		return 0
	}

	maxSim := 0.0
	for i := len(selected) - 1; i >= 0 && i >= len(selected)-mmrWindow; i-- {
		other := selected[i].Statement.FactEmbedding
		if len(other) == 0 {
			continue
		}
		sim := utils.CosineSimilarity(emb, other)
		if sim > maxSim {
			maxSim = sim
		}
		if sim > mmrDuplicateCutoff {
			break
		}
	}
	return maxSim
}

func pruneBelow(items []*ScoredStatement, floor float64) []*ScoredStatement {
	kept := items[:0]
	for _, item := range items {
		if item.ChosenScore >= floor {
			kept = append(kept, item)
		}
	}
	return kept
}
