package search

import "github.com/soundprediction/recall/pkg/types"

// PerSourceCap bounds how many statements each source contributes to a
// union sent to the external reranker.
const PerSourceCap = 100

// Dedup drops repeated uuids, keeping the first occurrence. Statements
// without a uuid are dropped.
func Dedup(statements []*types.Statement) []*types.Statement {
	seen := make(map[string]struct{}, len(statements))
	out := make([]*types.Statement, 0, len(statements))
	for _, s := range statements {
		if s == nil || s.Uuid == "" {
			continue
		}
		if _, ok := seen[s.Uuid]; ok {
			continue
		}
		seen[s.Uuid] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Merge builds the deduplicated union of the given sources in lexical,
// vector, graph order. Each candidate records its rank in every source list
// that contained it, and the native score where the source reported one.
// perSourceCap limits the statements taken from each source; non-positive
// means no limit.
func Merge(c *Candidates, perSourceCap int) []*ScoredStatement {
	index := make(map[string]*ScoredStatement)
	var out []*ScoredStatement

	for _, src := range Sources {
		list := Dedup(c.BySource(src))
		if perSourceCap > 0 && len(list) > perSourceCap {
			list = list[:perSourceCap]
		}
		for rank, s := range list {
			item, ok := index[s.Uuid]
			if !ok {
				item = newScoredStatement(s)
				index[s.Uuid] = item
				out = append(out, item)
			}
			item.Ranks[src] = rank
			if s.Score != nil {
				item.Scores[src] = *s.Score
			}
		}
	}
	return out
}
