package types

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrEmptyUUID    = errors.New("uuid cannot be empty")
	ErrEmptyUserID  = errors.New("user_id cannot be empty")
	ErrEmptyFact    = errors.New("fact cannot be empty")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// ContextKey is the type for request-scoped values carried through context.Context.
type ContextKey string

const (
	// ContextKeyUserID carries the caller's user id.
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeySessionID carries an optional session id.
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeyRequestSource identifies the surface a request came from (server, cli, mcp).
	ContextKeyRequestSource ContextKey = "request_source"
	// ContextKeyRequestID carries a per-request id.
	ContextKeyRequestID ContextKey = "request_id"
)

// Entity is a named node in the graph. Retrieval only uses entities as
// traversal seeds.
type Entity struct {
	Uuid          string    `json:"uuid"`
	Name          string    `json:"name"`
	Type          string    `json:"type,omitempty"`
	UserID        string    `json:"user_id"`
	NameEmbedding []float32 `json:"name_embedding,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Score is the similarity that selected this entity as a seed.
	Score float64 `json:"score,omitempty"`
}

// Statement is a reified (subject, predicate, object) fact.
type Statement struct {
	Uuid          string    `json:"uuid"`
	Fact          string    `json:"fact"`
	FactEmbedding []float32 `json:"fact_embedding,omitempty"`
	UserID        string    `json:"user_id"`
	SpaceIDs      []string  `json:"space_ids,omitempty"`

	Subject     string `json:"subject,omitempty"`
	SubjectType string `json:"subject_type,omitempty"`
	Predicate   string `json:"predicate,omitempty"`
	Object      string `json:"object,omitempty"`
	ObjectType  string `json:"object_type,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ValidAt   time.Time  `json:"valid_at"`
	InvalidAt *time.Time `json:"invalid_at,omitempty"`

	RecallCount     int64 `json:"recall_count"`
	ProvenanceCount int64 `json:"provenance_count"`

	Attributes map[string]interface{} `json:"attributes,omitempty"`

	// Score is the store-native relevance score (BM25 or cosine). Nil when
	// the store produced no score, as with graph traversal.
	Score *float64 `json:"score,omitempty"`
	// Hops is the path length from the nearest seed entity for statements
	// found by traversal.
	Hops int `json:"hops,omitempty"`
}

// IsValidAt reports whether the statement was true at t.
func (s *Statement) IsValidAt(t time.Time) bool {
	if s.ValidAt.After(t) {
		return false
	}
	return s.InvalidAt == nil || s.InvalidAt.After(t)
}

// Validate checks that the statement carries the fields retrieval depends on.
func (s *Statement) Validate() error {
	if s.Uuid == "" {
		return ErrEmptyUUID
	}
	if s.Fact == "" {
		return ErrEmptyFact
	}
	return nil
}

// Episode is the source document or conversation chunk a statement was
// extracted from.
type Episode struct {
	Uuid      string    `json:"uuid"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// StatementUUIDs lists the statements in a result set this episode supports.
	StatementUUIDs []string `json:"statement_uuids,omitempty"`
}

// FactResult is a single fact returned by search.
type FactResult struct {
	Fact    string    `json:"fact" yaml:"fact"`
	ValidAt time.Time `json:"valid_at" yaml:"valid_at"`
}

// SearchResult is the output of a search.
type SearchResult struct {
	Episodes []string     `json:"episodes" yaml:"episodes"`
	Facts    []FactResult `json:"facts" yaml:"facts"`
}

// EmptySearchResult returns a result with non-nil empty slices so it
// serializes as {"episodes": [], "facts": []}.
func EmptySearchResult() *SearchResult {
	return &SearchResult{
		Episodes: []string{},
		Facts:    []FactResult{},
	}
}

// Role is a chat message role.
type Role string

// Message is a single chat message sent to a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token consumption for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a language model completion.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}
