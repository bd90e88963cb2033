package search

import "sort"

// DefaultRankConstant is the k in 1/(rank+k).
const DefaultRankConstant = 60

// RRFWeights are the per-source weights for weighted reciprocal rank fusion.
var RRFWeights = map[Source]float64{
	SourceLexical: 1.0,
	SourceVector:  0.8,
	SourceGraph:   0.5,
}

// WeightedRRF fuses the sources by summing weight/(rank+k) over every source
// a candidate appears in. Results are tagged ScoreSourceRRF and sorted best
// first.
func WeightedRRF(c *Candidates, rankConstant int) []*ScoredStatement {
	if rankConstant <= 0 {
		rankConstant = DefaultRankConstant
	}

	items := Merge(c, 0)
	for _, item := range items {
		var score float64
		for src, rank := range item.Ranks {
			score += RRFWeights[src] / float64(rank+rankConstant)
		}
		item.ChosenScore = score
		item.ScoreSource = ScoreSourceRRF
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ChosenScore > items[j].ChosenScore
	})
	return items
}
