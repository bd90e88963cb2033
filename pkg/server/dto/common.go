package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/recall/pkg/types"
)

// MaxQueryLength bounds the query accepted over HTTP, in bytes.
const MaxQueryLength = 4096

var (
	// ErrQueryTooLong is returned when a query exceeds MaxQueryLength.
	ErrQueryTooLong = errors.New("query exceeds maximum length")
	// ErrMissingUser is returned when neither the body nor the X-User-ID
	// header names a user.
	ErrMissingUser = errors.New("user_id is required in the body or the X-User-ID header")
)

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query   string               `json:"query" binding:"required"`
	UserID  string               `json:"user_id,omitempty"`
	Options *types.SearchOptions `json:"options,omitempty"`
}

// Validate checks the fields binding tags cannot express. headerUserID is
// used when the body carries no user.
func (r *SearchRequest) Validate(headerUserID string) error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return errors.New("query cannot be empty")
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if strings.TrimSpace(r.UserID) == "" {
		r.UserID = strings.TrimSpace(headerUserID)
	}
	if r.UserID == "" {
		return ErrMissingUser
	}
	return nil
}

// SearchResponse is the body returned by POST /api/v1/search.
type SearchResponse struct {
	Episodes []string           `json:"episodes"`
	Facts    []types.FactResult `json:"facts"`
	Total    int                `json:"total"`
}

// NewSearchResponse wraps a search result.
func NewSearchResponse(result *types.SearchResult) SearchResponse {
	if result == nil {
		return SearchResponse{Episodes: []string{}, Facts: []types.FactResult{}}
	}
	return SearchResponse{
		Episodes: result.Episodes,
		Facts:    result.Facts,
		Total:    len(result.Facts),
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
