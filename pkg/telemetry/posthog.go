package telemetry

import (
	"context"
	"io"

	"github.com/posthog/posthog-go"

	"github.com/soundprediction/recall/pkg/types"
)

// SearchEvent is the PostHog event name for a completed search.
const SearchEvent = "recall_search"

// enqueuer is the part of the PostHog client the sink uses.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// PostHogSink sends each recall log as a PostHog event. The query text is
// not sent.
type PostHogSink struct {
	client enqueuer
}

// NewPostHogSink creates a sink for the project apiKey. host may be empty
// for PostHog cloud.
func NewPostHogSink(apiKey, host string) (*PostHogSink, error) {
	cfg := posthog.Config{}
	if host != "" {
		cfg.Endpoint = host
	}
	client, err := posthog.NewWithConfig(apiKey, cfg)
	if err != nil {
		return nil, err
	}
	return &PostHogSink{client: client}, nil
}

func (p *PostHogSink) Record(_ context.Context, log *types.RecallLog) error {
	if log == nil {
		return nil
	}
	props := posthog.NewProperties().
		Set("result_count", log.ResultCount).
		Set("average_score", log.AverageScore).
		Set("search_method", log.SearchMethod).
		Set("elapsed_ms", log.ElapsedMs).
		Set("lexical_count", log.LexicalCount).
		Set("vector_count", log.VectorCount).
		Set("graph_count", log.GraphCount)

	return p.client.Enqueue(posthog.Capture{
		DistinctId: log.UserID,
		Event:      SearchEvent,
		Timestamp:  log.CreatedAt,
		Properties: props,
	})
}

// Close flushes queued events.
func (p *PostHogSink) Close(_ context.Context) error {
	return p.client.Close()
}
