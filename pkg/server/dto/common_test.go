package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/recall/pkg/types"
)

func TestSearchRequestValidate(t *testing.T) {
	tests := []struct {
		name       string
		req        SearchRequest
		header     string
		wantErr    error
		wantUserID string
	}{
		{name: "body user", req: SearchRequest{Query: "alice", UserID: "u1"}, wantUserID: "u1"},
		{name: "header user", req: SearchRequest{Query: "alice"}, header: "u2", wantUserID: "u2"},
		{name: "body wins over header", req: SearchRequest{Query: "alice", UserID: "u1"}, header: "u2", wantUserID: "u1"},
		{name: "missing user", req: SearchRequest{Query: "alice"}, wantErr: ErrMissingUser},
		{name: "too long", req: SearchRequest{Query: strings.Repeat("a", MaxQueryLength+1), UserID: "u1"}, wantErr: ErrQueryTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantUserID, tt.req.UserID)
		})
	}

	blank := SearchRequest{Query: "   ", UserID: "u1"}
	assert.Error(t, blank.Validate(""))
}

func TestNewSearchResponse(t *testing.T) {
	resp := NewSearchResponse(nil)
	assert.NotNil(t, resp.Facts)
	assert.NotNil(t, resp.Episodes)

	resp = NewSearchResponse(&types.SearchResult{
		Episodes: []string{"ep"},
		Facts:    []types.FactResult{{Fact: "a"}, {Fact: "b"}},
	})
	assert.Equal(t, 2, resp.Total)
}
