package search

import "github.com/soundprediction/recall/pkg/types"

// Source identifies the retriever that produced a candidate.
type Source string

const (
	SourceLexical Source = "lexical"
	SourceVector  Source = "vector"
	SourceGraph   Source = "graph"
)

// Sources lists every retriever in merge order.
var Sources = []Source{SourceLexical, SourceVector, SourceGraph}

// ScoreSource records which strategy set ChosenScore.
type ScoreSource string

const (
	ScoreSourceNone        ScoreSource = ""
	ScoreSourceRerank      ScoreSource = "rerank"
	ScoreSourceClassifier  ScoreSource = "classifier"
	ScoreSourceMultiFactor ScoreSource = "multi_factor"
	ScoreSourceRRF         ScoreSource = "rrf"
)

// ScoredStatement is a deduplicated candidate with the per-source evidence
// every fusion strategy reads from and the single score it wrote.
type ScoredStatement struct {
	Statement *types.Statement

	// Scores holds the store-native score from each source that reported one.
	Scores map[Source]float64
	// Ranks holds the zero-based position in each source list that contained it.
	Ranks map[Source]int

	ChosenScore float64
	ScoreSource ScoreSource
}

func newScoredStatement(s *types.Statement) *ScoredStatement {
	return &ScoredStatement{
		Statement: s,
		Scores:    make(map[Source]float64, 1),
		Ranks:     make(map[Source]int, 1),
	}
}

// SourceCount is the number of retrievers that returned this candidate.
func (s *ScoredStatement) SourceCount() int {
	return len(s.Ranks)
}

// BestScore is the score the adaptive filter compares. Only a strategy
// score counts; a candidate no strategy scored reports zero.
func (s *ScoredStatement) BestScore() float64 {
	switch s.ScoreSource {
	case ScoreSourceRerank, ScoreSourceRRF, ScoreSourceMultiFactor, ScoreSourceClassifier:
		return s.ChosenScore
	default:
		return 0
	}
}

// Candidates holds the raw output of the three retrievers.
type Candidates struct {
	Lexical []*types.Statement
	Vector  []*types.Statement
	Graph   []*types.Statement
}

// BySource returns the list produced by src.
func (c *Candidates) BySource(src Source) []*types.Statement {
	switch src {
	case SourceLexical:
		return c.Lexical
	case SourceVector:
		return c.Vector
	case SourceGraph:
		return c.Graph
	default:
		return nil
	}
}

// NonEmptySources lists the sources that returned at least one statement.
func (c *Candidates) NonEmptySources() []Source {
	var out []Source
	for _, src := range Sources {
		if len(c.BySource(src)) > 0 {
			out = append(out, src)
		}
	}
	return out
}

// Empty reports whether every source came back empty.
func (c *Candidates) Empty() bool {
	return len(c.NonEmptySources()) == 0
}

// Statements unwraps scored candidates, preserving order.
func Statements(items []*ScoredStatement) []*types.Statement {
	out := make([]*types.Statement, len(items))
	for i, item := range items {
		out[i] = item.Statement
	}
	return out
}
