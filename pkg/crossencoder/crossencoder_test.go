package crossencoder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/types"
)

func TestCohereRerankerRerank(t *testing.T) {
	var captured cohereRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"index": 2, "relevance_score": 0.91},
			{"index": 0, "relevance_score": 0.42},
			{"index": 7, "relevance_score": 0.99},
			{"index": 1, "relevance_score": 0.05}
		]}`))
	}))
	defer srv.Close()

	reranker, err := NewCohereReranker(CohereConfig{APIKey: "co-key", BaseURL: srv.URL})
	require.NoError(t, err)
	defer reranker.Close()

	docs := []string{"alice works at acme", "the sky is blue", "alice joined acme in 2021"}
	results, err := reranker.Rerank(context.Background(), "where does alice work", docs)
	require.NoError(t, err)

	assert.Equal(t, "Bearer co-key", auth)
	assert.Equal(t, "where does alice work", captured.Query)
	assert.Equal(t, docs, captured.Documents)
	assert.Equal(t, DefaultCohereModel, captured.Model)
	assert.Equal(t, 3, captured.TopN)

	// out-of-range index 7 is dropped, the rest are sorted by score
	require.Len(t, results, 3)
	assert.Equal(t, RerankResult{Index: 2, RelevanceScore: 0.91}, results[0])
	assert.Equal(t, RerankResult{Index: 0, RelevanceScore: 0.42}, results[1])
	assert.Equal(t, RerankResult{Index: 1, RelevanceScore: 0.05}, results[2])
}

func TestCohereRerankerErrors(t *testing.T) {
	_, err := NewCohereReranker(CohereConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid api token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	reranker, err := NewCohereReranker(CohereConfig{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = reranker.Rerank(context.Background(), "q", []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, &RerankAPIError{})
	assert.ErrorIs(t, err, &RerankAPIError{StatusCode: http.StatusUnauthorized})
	assert.NotErrorIs(t, err, &RerankAPIError{StatusCode: http.StatusTooManyRequests})
	assert.Contains(t, err.Error(), "invalid api token")

	results, err := reranker.Rerank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCohereRerankerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	reranker, err := NewCohereReranker(CohereConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = reranker.Rerank(context.Background(), "q", []string{"a"})
	assert.Error(t, err)
}

func TestMatchToIndices(t *testing.T) {
	docs := []string{"a", "b", "a", "c"}
	results := matchToIndices(docs, []string{"a", "c", "a", "zzz"}, []float64{0.9, 0.8, 0.7, 0.6})

	assert.Equal(t, []RerankResult{
		{Index: 0, RelevanceScore: 0.9},
		{Index: 3, RelevanceScore: 0.8},
		{Index: 2, RelevanceScore: 0.7},
	}, results)
}

type mockReranker struct {
	mu      sync.Mutex
	calls   int
	err     error
	results []RerankResult
}

func (m *mockReranker) Rerank(ctx context.Context, query string, documents []string) ([]RerankResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockReranker) Close() error { return nil }

func TestCircuitBreakerReranker(t *testing.T) {
	inner := &mockReranker{err: errors.New("connection reset")}
	cfg := config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		MinRequests:      2,
		Interval:         60,
		Timeout:          60,
		ReadyToTripRatio: 0.5,
	}
	reranker := NewCircuitBreakerReranker(inner, cfg, nil, "reranker", nil)

	for i := 0; i < 2; i++ {
		_, err := reranker.Rerank(context.Background(), "q", []string{"a"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, reranker.State())

	_, err := reranker.Rerank(context.Background(), "q", []string{"a"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}

func TestCircuitBreakerRerankerPassesResults(t *testing.T) {
	inner := &mockReranker{results: []RerankResult{{Index: 0, RelevanceScore: 0.8}}}
	reranker := NewCircuitBreakerReranker(inner, config.CircuitBreakerConfig{Enabled: true, ReadyToTripRatio: 0.5}, nil, "reranker", nil)

	results, err := reranker.Rerank(context.Background(), "q", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, inner.results, results)
}

func TestNewReranker(t *testing.T) {
	breaker := config.CircuitBreakerConfig{Enabled: true, ReadyToTripRatio: 0.5}

	r, err := NewReranker(config.RerankerConfig{Provider: "cohere"}, breaker, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, r, "no api key means no reranker")

	r, err = NewReranker(config.RerankerConfig{Provider: "cohere", APIKey: "k"}, breaker, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &CircuitBreakerReranker{}, r)

	r, err = NewReranker(config.RerankerConfig{Provider: "cohere", APIKey: "k"}, config.CircuitBreakerConfig{}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &CohereReranker{}, r)

	_, err = NewReranker(config.RerankerConfig{Provider: "jina", APIKey: "k"}, breaker, nil, nil)
	assert.Error(t, err)
}

func TestDefaultModel(t *testing.T) {
	tests := []struct {
		provider Provider
		want     string
	}{
		{ProviderCohere, DefaultCohereModel},
		{"", DefaultCohereModel},
		{ProviderEmbedEverything, DefaultLocalModel},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultModel(tt.provider))
		})
	}
}

func TestNewRerankerDefaultsCohereModel(t *testing.T) {
	var captured cohereRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	r, err := NewReranker(config.RerankerConfig{Provider: "cohere", APIKey: "k", BaseURL: srv.URL}, config.CircuitBreakerConfig{}, nil, nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Rerank(context.Background(), "q", []string{"d"})
	require.NoError(t, err)
	assert.Equal(t, DefaultCohereModel, captured.Model)
}

type scriptedChat struct {
	mu      sync.Mutex
	answers map[string]string
	fail    map[string]bool
	prompts []string
}

func (s *scriptedChat) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prompt := messages[len(messages)-1].Content
	s.prompts = append(s.prompts, prompt)
	for passage, answer := range s.answers {
		if strings.Contains(prompt, "<PASSAGE>\n"+passage+"\n</PASSAGE>") {
			if s.fail[passage] {
				return nil, errors.New("upstream 500")
			}
			return &types.Response{Content: answer}, nil
		}
	}
	return &types.Response{Content: ""}, nil
}

func (s *scriptedChat) Close() error { return nil }

func TestLLMClassifierClassify(t *testing.T) {
	chat := &scriptedChat{answers: map[string]string{
		"alice works at acme": "True",
		"bob likes tea":       "False",
	}}
	classifier := NewLLMClassifier(chat)

	ok, err := classifier.Classify(context.Background(), "alice employer", "alice works at acme")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = classifier.Classify(context.Background(), "alice employer", "bob likes tea")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NotEmpty(t, chat.prompts)
	assert.Contains(t, chat.prompts[0], "<QUERY>\nalice employer\n</QUERY>")
}

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"True", true},
		{"true", true},
		{" True.", true},
		{"Yes", true},
		{"False", false},
		{"no", false},
		{"", false},
		{"Maybe", false},
		{"Truthfully, no", false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, parseJudgment(tt.content))
		})
	}
}

func TestClassifyAllFailsClosed(t *testing.T) {
	chat := &scriptedChat{
		answers: map[string]string{
			"p0": "True",
			"p1": "False",
			"p2": "True",
			"p3": "True",
		},
		fail: map[string]bool{"p2": true},
	}

	verdicts := ClassifyAll(context.Background(), NewLLMClassifier(chat), "q", []string{"p0", "p1", "p2", "p3"}, 2, nil)
	assert.Equal(t, []bool{true, false, false, true}, verdicts)
	assert.Len(t, chat.prompts, 4)

	assert.Empty(t, ClassifyAll(context.Background(), NewLLMClassifier(chat), "q", nil, 0, nil))
}
