package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// RerankAPIError is returned for non-2xx responses from a rerank endpoint.
type RerankAPIError struct {
	StatusCode int
	Body       string
}

func (e *RerankAPIError) Error() string {
	return fmt.Sprintf("rerank API returned status %d: %s", e.StatusCode, e.Body)
}

// Is matches any RerankAPIError, or one with the same status code when the
// target sets it.
func (e *RerankAPIError) Is(target error) bool {
	t, ok := target.(*RerankAPIError)
	if !ok {
		return false
	}
	return t.StatusCode == 0 || t.StatusCode == e.StatusCode
}

// CohereConfig configures a Cohere-compatible reranker.
type CohereConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// CohereReranker calls a Cohere-style /rerank endpoint. Any service that
// accepts {query, documents, model, top_n} and answers with
// {results: [{index, relevance_score}]} works, including Jina and TEI
// deployments that emulate it.
type CohereReranker struct {
	config CohereConfig
	client *http.Client
}

// NewCohereReranker creates a reranker for the given endpoint.
func NewCohereReranker(config CohereConfig) (*CohereReranker, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultCohereURL
	}
	if config.Model == "" {
		config.Model = DefaultCohereModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &CohereReranker{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

type cohereRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n"`
}

type cohereResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements Reranker.
func (c *CohereReranker) Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error) {
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	body, err := json.Marshal(cohereRequest{
		Query:     query,
		Documents: documents,
		Model:     c.config.Model,
		TopN:      len(documents),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &RerankAPIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var parsed cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]RerankResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			continue
		}
		results = append(results, RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	return results, nil
}

// Close implements Reranker.
func (c *CohereReranker) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
