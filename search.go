package recall

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/recall/pkg/search"
	"github.com/soundprediction/recall/pkg/types"
	"github.com/soundprediction/recall/pkg/utils"
)

// Search retrieves, fuses and filters the statements relevant to query,
// resolves the episodes behind them, and queues the recall-count update and
// the recall log. Retrieval and ranking failures degrade the result instead
// of failing the call; only invalid input returns an error.
func (c *Client) Search(ctx context.Context, query, userID string, opts *types.SearchOptions) (*types.SearchResult, error) {
	start := c.now()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}

	opts = c.applyDefaults(opts, start)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	candidates := c.searcher.Retrieve(ctx, query, userID, opts)
	ranked, method := c.ranker.Rank(ctx, query, candidates, opts.Limit)
	kept := search.AdaptiveFilter(ranked, opts.Limit, opts.ScoreThreshold, opts.MinResults)
	if len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}

	statements := search.Statements(kept)
	episodes := c.resolveEpisodes(ctx, userID, statements)

	c.logger.Debug("search complete",
		"user_id", userID,
		"method", string(method),
		"lexical", len(candidates.Lexical),
		"vector", len(candidates.Vector),
		"graph", len(candidates.Graph),
		"facts", len(statements),
		"episodes", len(episodes))

	c.submitSideEffects(userID, statements, episodes)
	c.submitRecallLog(query, userID, opts, candidates, kept, method, start)

	return buildResult(statements, episodes), nil
}

// applyDefaults layers the client defaults and then the built-in defaults
// under the caller's options.
func (c *Client) applyDefaults(opts *types.SearchOptions, now time.Time) *types.SearchOptions {
	merged := c.defaults
	if opts != nil {
		merged = *opts
		if merged.Limit == 0 {
			merged.Limit = c.defaults.Limit
		}
		if merged.MaxBfsDepth == 0 {
			merged.MaxBfsDepth = c.defaults.MaxBfsDepth
		}
		if merged.ScoreThreshold == 0 {
			merged.ScoreThreshold = c.defaults.ScoreThreshold
		}
		if merged.MinResults == 0 {
			merged.MinResults = c.defaults.MinResults
		}
	}
	return merged.WithDefaults(now)
}

// resolveEpisodes loads the episodes behind statements, ordered by the best
// rank among the statements each one supports. A store failure is logged and
// yields no episodes.
func (c *Client) resolveEpisodes(ctx context.Context, userID string, statements []*types.Statement) []*types.Episode {
	if len(statements) == 0 {
		return []*types.Episode{}
	}

	rank := make(map[string]int, len(statements))
	uuids := make([]string, len(statements))
	for i, s := range statements {
		uuids[i] = s.Uuid
		rank[s.Uuid] = i
	}

	episodes, err := c.store.EpisodesForStatements(ctx, userID, uuids)
	if err != nil {
		c.logger.Warn("episode resolution failed, returning facts only",
			"user_id", userID,
			"error", err)
		return []*types.Episode{}
	}

	best := make(map[string]int, len(episodes))
	out := make([]*types.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if ep == nil || ep.Uuid == "" {
			continue
		}
		r := len(statements)
		for _, id := range ep.StatementUUIDs {
			if i, ok := rank[id]; ok && i < r {
				r = i
			}
		}
		if prev, seen := best[ep.Uuid]; seen {
			if r < prev {
				best[ep.Uuid] = r
			}
			continue
		}
		best[ep.Uuid] = r
		out = append(out, ep)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return best[out[i].Uuid] < best[out[j].Uuid]
	})
	return out
}

func (c *Client) submitSideEffects(userID string, statements []*types.Statement, episodes []*types.Episode) {
	if len(statements) == 0 {
		return
	}

	ids := make([]string, 0, len(statements)+len(episodes))
	for _, s := range statements {
		ids = append(ids, s.Uuid)
	}
	for _, ep := range episodes {
		ids = append(ids, ep.Uuid)
	}

	c.submit(utils.Task{
		Name: "increment_recall_count",
		Run: func(ctx context.Context) error {
			if err := c.store.IncrementRecallCount(ctx, userID, ids); err != nil {
				return err
			}
			c.logger.Debug("Recall counts incremented", "user_id", userID, "count", len(ids))
			return nil
		},
	})
}

func (c *Client) submitRecallLog(query, userID string, opts *types.SearchOptions, candidates *search.Candidates, kept []*search.ScoredStatement, method types.SearchMethod, start time.Time) {
	if c.sink == nil {
		return
	}

	snapshot, err := json.Marshal(opts)
	if err != nil {
		snapshot = []byte("{}")
	}

	log := &types.RecallLog{
		ID:           uuid.New().String(),
		UserID:       userID,
		Query:        query,
		ResultCount:  len(kept),
		AverageScore: averageScore(kept),
		SearchMethod: string(method),
		ElapsedMs:    c.now().Sub(start).Milliseconds(),
		LexicalCount: len(candidates.Lexical),
		VectorCount:  len(candidates.Vector),
		GraphCount:   len(candidates.Graph),
		Options:      string(snapshot),
		CreatedAt:    start.UTC(),
	}

	c.submit(utils.Task{
		Name: "record_recall_log",
		Run: func(ctx context.Context) error {
			if err := c.sink.Record(ctx, log); err != nil {
				return fmt.Errorf("failed to record recall log: %w", err)
			}
			return nil
		},
	})
}

func (c *Client) submit(task utils.Task) {
	if err := c.queue.Submit(task); err != nil {
		c.logger.Error("failed to queue background task", "task", task.Name, "error", err)
	}
}

func averageScore(items []*search.ScoredStatement) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += item.BestScore()
	}
	return sum / float64(len(items))
}

func buildResult(statements []*types.Statement, episodes []*types.Episode) *types.SearchResult {
	result := &types.SearchResult{
		Episodes: make([]string, 0, len(episodes)),
		Facts:    make([]types.FactResult, 0, len(statements)),
	}
	for _, ep := range episodes {
		result.Episodes = append(result.Episodes, ep.Content)
	}
	for _, s := range statements {
		result.Facts = append(result.Facts, types.FactResult{Fact: s.Fact, ValidAt: s.ValidAt})
	}
	return result
}
