// Package telemetry records one RecallLog per search and ships it to the
// configured sinks: buffered parquet files (optionally uploaded to an
// S3-compatible bucket), a SQL table, and PostHog events.
//
// It also provides ErrorHandler, a slog.Handler that copies error records to
// parquet files next to the recall logs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/types"
)

// Sink receives recall logs.
type Sink interface {
	Record(ctx context.Context, log *types.RecallLog) error
	Close(ctx context.Context) error
}

// MultiSink fans a record out to every sink. A failing sink does not stop
// the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len is the number of wrapped sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func (m *MultiSink) Record(ctx context.Context, log *types.RecallLog) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, log); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewSinks builds every sink the configuration enables. A configuration that
// enables nothing yields an empty MultiSink.
func NewSinks(cfg config.TelemetryConfig, logger *slog.Logger) (*MultiSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var sinks []Sink
	closeAll := func() {
		_ = NewMultiSink(sinks...).Close(context.Background())
	}

	if cfg.ParquetPath != "" {
		var uploader Uploader
		if cfg.ObjectStore.Endpoint != "" {
			u, err := NewObjectStoreUploader(cfg.ObjectStore)
			if err != nil {
				return nil, err
			}
			uploader = u
		}
		ps, err := NewParquetSink(cfg.ParquetPath, cfg.FlushSize, uploader, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ps)
	}

	if cfg.DbDriver != "" && cfg.DbURL != "" {
		ss, err := OpenSQLSink(cfg.DbDriver, cfg.DbURL)
		if err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, ss)
	}

	if cfg.PostHogAPIKey != "" {
		ph, err := NewPostHogSink(cfg.PostHogAPIKey, cfg.PostHogHost)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to create posthog sink: %w", err)
		}
		sinks = append(sinks, ph)
	}

	return NewMultiSink(sinks...), nil
}
