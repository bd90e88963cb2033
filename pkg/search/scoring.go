package search

import (
	"math"
	"sort"
	"time"
)

// Source weights for multi-factor scoring.
var MultiFactorWeights = map[Source]float64{
	SourceLexical: 1.0,
	SourceVector:  0.9,
	SourceGraph:   0.6,
}

const (
	multiSourceBonus = 1.2
	recencyFloor     = 0.9
	recencyWindow    = 365 * 24 * time.Hour
	popularityFactor = 0.15
	authorityFactor  = 0.2
)

// signal is the native score when the source reported one, else a rank
// fallback of 1/(rank+1).
func signal(item *ScoredStatement, src Source) (float64, bool) {
	if score, ok := item.Scores[src]; ok {
		return score, true
	}
	if rank, ok := item.Ranks[src]; ok {
		return 1 / float64(rank+1), true
	}
	return 0, false
}

// recencyBonus decays linearly from 1.0 to 0.9 over a year since creation.
func recencyBonus(created, now time.Time) float64 {
	if created.IsZero() {
		return recencyFloor
	}
	age := now.Sub(created)
	if age <= 0 {
		return 1
	}
	return math.Max(recencyFloor, 1-(1-recencyFloor)*float64(age)/float64(recencyWindow))
}

func popularityBonus(recallCount int64) float64 {
	if recallCount < 0 {
		recallCount = 0
	}
	return 1 + math.Log(1+float64(recallCount))*popularityFactor
}

func authorityBonus(provenanceCount int64) float64 {
	return 1 + math.Log(math.Max(1, float64(provenanceCount)))*authorityFactor
}

// MultiFactorScore computes the weighted, bonus-adjusted relevance of each
// candidate, stores it as ChosenScore, and returns the candidates sorted by
// it, best first.
func MultiFactorScore(items []*ScoredStatement, now time.Time) []*ScoredStatement {
	for _, item := range items {
		var weighted float64
		for _, src := range Sources {
			if v, ok := signal(item, src); ok {
				weighted += MultiFactorWeights[src] * v
			}
		}

		bonus := 1.0
		if item.SourceCount() > 1 {
			bonus *= multiSourceBonus
		}
		created := item.Statement.CreatedAt
		if created.IsZero() {
			created = item.Statement.ValidAt
		}
		bonus *= recencyBonus(created, now)
		bonus *= popularityBonus(item.Statement.RecallCount)
		bonus *= authorityBonus(item.Statement.ProvenanceCount)

		item.ChosenScore = weighted * bonus
		item.ScoreSource = ScoreSourceMultiFactor
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ChosenScore > items[j].ChosenScore
	})
	return items
}
