package search

import (
	"math"
	"sort"
)

const (
	// MinFilterSize is the list size at or below which filtering is skipped.
	MinFilterSize = 5
	// DefaultFilterThreshold applies when the caller passes a non-positive
	// score threshold.
	DefaultFilterThreshold = 0.3

	absoluteScoreFloor = 0.1
	rrfLikeRange       = 0.01
	rrfMaxFraction     = 0.2
	rrfMedianFraction  = 0.5
)

// AdaptiveFilter drops the weak tail of a ranked list. The cut adapts to the
// score distribution: rank-fusion scores are compressed into a narrow band,
// so they get a lenient cut relative to the max and median, while other
// scores are cut at scoreThreshold of the way from min to max. When at
// least minResults items exist, the cut is relaxed until minResults survive.
// The surviving list keeps its order and is truncated to limit when limit is
// positive. Lists of MinFilterSize or fewer items are returned unchanged.
func AdaptiveFilter(items []*ScoredStatement, limit int, scoreThreshold float64, minResults int) []*ScoredStatement {
	if len(items) <= MinFilterSize {
		return items
	}

	scores := make([]float64, len(items))
	allZero := true
	for i, item := range items {
		scores[i] = item.BestScore()
		if scores[i] != 0 {
			allZero = false
		}
	}
	if allZero {
		return truncate(items, limit)
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		minScore = math.Min(minScore, s)
		maxScore = math.Max(maxScore, s)
	}
	scoreRange := maxScore - minScore

	var threshold float64
	if isRRFLike(items, scoreRange) {
		threshold = math.Min(rrfMaxFraction*maxScore, rrfMedianFraction*median(scores))
	} else {
		if scoreThreshold <= 0 {
			scoreThreshold = DefaultFilterThreshold
		}
		threshold = math.Max(absoluteScoreFloor, minScore+scoreRange*scoreThreshold)
	}
	threshold = relaxForMinResults(scores, threshold, minResults)

	kept := make([]*ScoredStatement, 0, len(items))
	for i, item := range items {
		if scores[i] >= threshold {
			kept = append(kept, item)
		}
	}
	return truncate(kept, limit)
}

func isRRFLike(items []*ScoredStatement, scoreRange float64) bool {
	if scoreRange < rrfLikeRange {
		return true
	}
	for _, item := range items {
		if item.ScoreSource == ScoreSourceRRF {
			return true
		}
	}
	return false
}

// relaxForMinResults lowers threshold to the minResults-th best score when
// fewer than minResults would otherwise survive.
func relaxForMinResults(scores []float64, threshold float64, minResults int) float64 {
	if minResults <= 0 || len(scores) < minResults {
		return threshold
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if floor := sorted[minResults-1]; floor < threshold {
		return floor
	}
	return threshold
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func truncate(items []*ScoredStatement, limit int) []*ScoredStatement {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
