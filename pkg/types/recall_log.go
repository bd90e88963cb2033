package types

import "time"

// SearchMethod names the fusion strategy that produced a result set.
type SearchMethod string

const (
	SearchMethodNone           SearchMethod = "none"
	SearchMethodExternalRerank SearchMethod = "external_rerank"
	SearchMethodRerankFallback SearchMethod = "rerank_fallback"
	SearchMethodCrossEncoder   SearchMethod = "cross_encoder"
	SearchMethodMultiFactorMMR SearchMethod = "multi_factor_mmr"
	SearchMethodReciprocalRank SearchMethod = "rrf"
)

// RecallLog is the immutable telemetry record written once per search.
// The parquet tags are used by the parquet sink.
type RecallLog struct {
	ID           string    `json:"id" parquet:"id"`
	UserID       string    `json:"user_id" parquet:"user_id"`
	Query        string    `json:"query" parquet:"query"`
	ResultCount  int       `json:"result_count" parquet:"result_count"`
	AverageScore float64   `json:"average_score" parquet:"average_score"`
	SearchMethod string    `json:"search_method" parquet:"search_method"`
	ElapsedMs    int64     `json:"elapsed_ms" parquet:"elapsed_ms"`
	LexicalCount int       `json:"lexical_count" parquet:"lexical_count"`
	VectorCount  int       `json:"vector_count" parquet:"vector_count"`
	GraphCount   int       `json:"graph_count" parquet:"graph_count"`
	Options      string    `json:"options" parquet:"options"` // JSON snapshot
	CreatedAt    time.Time `json:"created_at" parquet:"created_at"`
}
