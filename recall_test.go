package recall_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall"
	"github.com/soundprediction/recall/pkg/crossencoder"
	"github.com/soundprediction/recall/pkg/driver"
	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/types"
)

// fakeStore implements driver.FactStore over in-memory lists
type fakeStore struct {
	mu sync.Mutex

	fulltext  []*types.Statement
	vector    []*types.Statement
	entities  []*types.Entity
	traversal []*types.Statement
	episodes  []*types.Episode

	episodeErr  error
	fulltextErr error

	traverseCalls int
	incremented   []string
	lastFilter    types.StatementFilter
	closed        bool
}

// filtered applies the store-side temporal filter like a real backend would.
func filtered(statements []*types.Statement, filter types.StatementFilter) []*types.Statement {
	var out []*types.Statement
	for _, s := range statements {
		if filter.MatchesTime(s) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeStore) FulltextSearch(ctx context.Context, query string, filter types.StatementFilter, limit int) ([]*types.Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.fulltextErr != nil {
		return nil, f.fulltextErr
	}
	return filtered(f.fulltext, filter), nil
}

func (f *fakeStore) VectorSearch(ctx context.Context, embedding []float32, filter types.StatementFilter, limit int, minScore float64) ([]*types.Statement, error) {
	return filtered(f.vector, filter), nil
}

func (f *fakeStore) EntitySearch(ctx context.Context, embedding []float32, userID string, limit int, minScore float64) ([]*types.Entity, error) {
	return f.entities, nil
}

func (f *fakeStore) Traverse(ctx context.Context, seedUUIDs []string, depth int, filter types.StatementFilter, limit int) ([]*types.Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traverseCalls++
	return filtered(f.traversal, filter), nil
}

func (f *fakeStore) EpisodesForStatements(ctx context.Context, userID string, statementUUIDs []string) ([]*types.Episode, error) {
	if f.episodeErr != nil {
		return nil, f.episodeErr
	}
	return f.episodes, nil
}

func (f *fakeStore) IncrementRecallCount(ctx context.Context, userID string, uuids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incremented = append(f.incremented, uuids...)
	return nil
}

func (f *fakeStore) EnsureIndexes(ctx context.Context, dimensions int) error { return nil }

func (f *fakeStore) VerifyConnectivity(ctx context.Context) error { return nil }

func (f *fakeStore) Provider() driver.GraphProvider { return driver.GraphProviderNeo4j }

func (f *fakeStore) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fakeEmbedder) Dimensions() int { return 2 }

func (fakeEmbedder) Close() error { return nil }

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, query string, documents []string) ([]crossencoder.RerankResult, error) {
	return nil, crossencoder.ErrMissingAPIKey
}

func (failingReranker) Close() error { return nil }

type recordingSink struct {
	mu   sync.Mutex
	logs []*types.RecallLog
}

func (r *recordingSink) Record(ctx context.Context, log *types.RecallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *recordingSink) Close(ctx context.Context) error { return nil }

func statements(prefix string, n int, validAt time.Time) []*types.Statement {
	out := make([]*types.Statement, n)
	for i := range out {
		id := fmt.Sprintf("%s%d", prefix, i)
		out[i] = &types.Statement{
			Uuid:      id,
			Fact:      "fact " + id,
			ValidAt:   validAt,
			CreatedAt: validAt,
		}
	}
	return out
}

func newClient(t *testing.T, store *fakeStore, config *recall.Config) *recall.Client {
	t.Helper()
	client, err := recall.NewClient(store, fakeEmbedder{}, config, nil)
	require.NoError(t, err)
	return client
}

func facts(result *types.SearchResult) []string {
	out := make([]string, len(result.Facts))
	for i, f := range result.Facts {
		out[i] = f.Fact
	}
	return out
}

func TestNewClientRequiresStore(t *testing.T) {
	_, err := recall.NewClient(nil, nil, nil, nil)
	assert.ErrorIs(t, err, recall.ErrNilStore)
}

func TestSearchValidation(t *testing.T) {
	client := newClient(t, &fakeStore{}, nil)
	ctx := context.Background()

	_, err := client.Search(ctx, "  ", "u1", nil)
	assert.ErrorIs(t, err, recall.ErrEmptyQuery)

	_, err = client.Search(ctx, "alice", "", nil)
	assert.ErrorIs(t, err, recall.ErrMissingUserID)

	_, err = client.Search(ctx, "alice", "u1", &types.SearchOptions{Limit: 5000})
	assert.Error(t, err)

	start := time.Now().Add(time.Hour)
	end := time.Now()
	_, err = client.Search(ctx, "alice", "u1", &types.SearchOptions{StartTime: &start, EndTime: &end})
	assert.ErrorIs(t, err, types.ErrInvalidTimeRange)
}

func TestSearchDisjointSourcesAreFusedAndFiltered(t *testing.T) {
	validAt := time.Now().Add(-time.Hour)
	store := &fakeStore{
		fulltext:  statements("lex", 5, validAt),
		vector:    statements("vec", 3, validAt),
		entities:  []*types.Entity{{Uuid: "e1"}},
		traversal: statements("bfs", 2, validAt),
	}
	client := newClient(t, store, nil)

	result, err := client.Search(context.Background(), "where does alice work", "u1", &types.SearchOptions{Limit: 10, MinResults: 5})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(result.Facts), 10)
	assert.GreaterOrEqual(t, len(result.Facts), 5)

	seen := make(map[string]bool)
	for _, f := range facts(result) {
		assert.False(t, seen[f], "duplicate fact %s", f)
		seen[f] = true
	}
	assert.Equal(t, "fact lex0", result.Facts[0].Fact)
}

func TestSearchAllSourcesEmpty(t *testing.T) {
	sink := &recordingSink{}
	store := &fakeStore{}
	client := newClient(t, store, &recall.Config{Sink: sink})

	result, err := client.Search(context.Background(), "alice", "u1", nil)
	require.NoError(t, err)
	assert.NotNil(t, result.Facts)
	assert.NotNil(t, result.Episodes)
	assert.Empty(t, result.Facts)
	assert.Empty(t, result.Episodes)

	require.NoError(t, client.Close(context.Background()))
	require.Len(t, sink.logs, 1)
	assert.Equal(t, string(types.SearchMethodNone), sink.logs[0].SearchMethod)
	assert.Zero(t, sink.logs[0].ResultCount)
	assert.Empty(t, store.incremented)
}

func TestSearchInvalidatedStatements(t *testing.T) {
	now := time.Now()
	invalidAt := now.Add(-time.Hour)

	current := &types.Statement{Uuid: "current", Fact: "alice works at acme", ValidAt: now.Add(-48 * time.Hour)}
	stale := &types.Statement{Uuid: "stale", Fact: "alice works at initech", ValidAt: now.Add(-72 * time.Hour), InvalidAt: &invalidAt}

	store := &fakeStore{fulltext: []*types.Statement{current, stale}}
	client := newClient(t, store, nil)
	ctx := context.Background()

	result, err := client.Search(ctx, "alice employer", "u1", &types.SearchOptions{EndTime: &now})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice works at acme"}, facts(result))

	result, err = client.Search(ctx, "alice employer", "u1", &types.SearchOptions{EndTime: &now, IncludeInvalidated: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice works at acme", "alice works at initech"}, facts(result))

	asOf := now.Add(-2 * time.Hour)
	result, err = client.Search(ctx, "alice employer", "u1", &types.SearchOptions{ValidAt: &asOf, EndTime: &now})
	require.NoError(t, err)
	assert.Len(t, result.Facts, 2, "both were valid before the invalidation")
}

func TestSearchNoSeedEntities(t *testing.T) {
	validAt := time.Now().Add(-time.Hour)
	store := &fakeStore{
		fulltext:  statements("lex", 2, validAt),
		vector:    statements("vec", 2, validAt),
		traversal: statements("bfs", 2, validAt),
	}
	client := newClient(t, store, nil)

	result, err := client.Search(context.Background(), "alice", "u1", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fact lex0", "fact lex1", "fact vec0", "fact vec1"}, facts(result))
	assert.Zero(t, store.traverseCalls)
}

func TestSearchRerankerFailureFallsBackToUnion(t *testing.T) {
	validAt := time.Now().Add(-time.Hour)
	sink := &recordingSink{}
	store := &fakeStore{fulltext: statements("lex", 8, validAt)}
	client := newClient(t, store, &recall.Config{Reranker: failingReranker{}, Sink: sink})

	result, err := client.Search(context.Background(), "alice", "u1", &types.SearchOptions{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"fact lex0", "fact lex1", "fact lex2"}, facts(result))

	require.NoError(t, client.Close(context.Background()))
	require.Len(t, sink.logs, 1)
	log := sink.logs[0]
	assert.Equal(t, string(types.SearchMethodRerankFallback), log.SearchMethod)
	assert.Equal(t, 3, log.ResultCount)
	assert.Equal(t, 8, log.LexicalCount)
	assert.Zero(t, log.AverageScore)
	assert.Contains(t, log.Options, `"limit":3`)
	assert.NotEmpty(t, log.ID)
}

func TestSearchRetrieverFailureDegrades(t *testing.T) {
	validAt := time.Now().Add(-time.Hour)
	store := &fakeStore{
		fulltextErr: errors.New("fulltext index missing"),
		vector:      statements("vec", 2, validAt),
	}
	client := newClient(t, store, nil)

	result, err := client.Search(context.Background(), "alice", "u1", nil)
	require.NoError(t, err)
	assert.Len(t, result.Facts, 2)
}

func TestSearchEpisodesAndSideEffects(t *testing.T) {
	validAt := time.Now().Add(-time.Hour)
	store := &fakeStore{
		fulltext: statements("lex", 3, validAt),
		episodes: []*types.Episode{
			{Uuid: "ep-late", Content: "late episode", StatementUUIDs: []string{"lex2"}},
			{Uuid: "ep-early", Content: "early episode", StatementUUIDs: []string{"lex0", "lex2"}},
			{Uuid: "ep-late", Content: "late episode", StatementUUIDs: []string{"lex1"}},
		},
	}
	client := newClient(t, store, &recall.Config{Ranker: search.RankerConfig{Strategy: search.StrategyRRF}})

	result, err := client.Search(context.Background(), "alice", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"early episode", "late episode"}, result.Episodes)
	assert.Equal(t, []string{"fact lex0", "fact lex1", "fact lex2"}, facts(result))

	require.NoError(t, client.Close(context.Background()))
	assert.ElementsMatch(t, []string{"lex0", "lex1", "lex2", "ep-early", "ep-late"}, store.incremented)
	assert.True(t, store.closed)
}

func TestSearchEpisodeFailureKeepsFacts(t *testing.T) {
	validAt := time.Now().Add(-time.Hour)
	store := &fakeStore{
		fulltext:   statements("lex", 2, validAt),
		episodeErr: errors.New("provenance query failed"),
	}
	client := newClient(t, store, nil)

	result, err := client.Search(context.Background(), "alice", "u1", nil)
	require.NoError(t, err)
	assert.Len(t, result.Facts, 2)
	assert.Empty(t, result.Episodes)
}

func TestSearchDefaultsFromConfig(t *testing.T) {
	validAt := time.Now().Add(-time.Hour)
	store := &fakeStore{fulltext: statements("lex", 8, validAt)}
	client := newClient(t, store, &recall.Config{
		Reranker:       failingReranker{},
		SearchDefaults: types.SearchOptions{Limit: 2, SpaceIDs: []string{"work"}},
	})

	result, err := client.Search(context.Background(), "alice", "u1", nil)
	require.NoError(t, err)
	assert.Len(t, result.Facts, 2)
	assert.Equal(t, []string{"work"}, store.lastFilter.SpaceIDs)

	result, err = client.Search(context.Background(), "alice", "u1", &types.SearchOptions{Limit: 4})
	require.NoError(t, err)
	assert.Len(t, result.Facts, 4)
}

type closingClassifier struct {
	closed bool
}

func (c *closingClassifier) Classify(ctx context.Context, query, passage string) (bool, error) {
	return true, nil
}

func (c *closingClassifier) Close() error {
	c.closed = true
	return nil
}

func TestCloseReleasesClassifier(t *testing.T) {
	store := &fakeStore{}
	classifier := &closingClassifier{}
	client := newClient(t, store, &recall.Config{Classifier: classifier})

	require.NoError(t, client.Close(context.Background()))
	assert.True(t, classifier.closed)
	assert.True(t, store.closed)
}
