package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/recall/pkg/types"
)

// DefaultFlushSize is the number of buffered rows that triggers a file write.
const DefaultFlushSize = 100

// batchWriter buffers rows and writes each full batch to its own parquet
// file, handing the file to the uploader when one is set.
type batchWriter[T any] struct {
	mu        sync.Mutex
	dir       string
	prefix    string
	batchSize int
	buffer    []T
	uploader  Uploader
	logger    *slog.Logger
}

func newBatchWriter[T any](dir, prefix string, batchSize int, uploader Uploader, logger *slog.Logger) (*batchWriter[T], error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	if batchSize <= 0 {
		batchSize = DefaultFlushSize
	}
	return &batchWriter[T]{
		dir:       dir,
		prefix:    prefix,
		batchSize: batchSize,
		buffer:    make([]T, 0, batchSize),
		uploader:  uploader,
		logger:    logger,
	}, nil
}

func (b *batchWriter[T]) add(ctx context.Context, row T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buffer = append(b.buffer, row)
	if len(b.buffer) >= b.batchSize {
		return b.flushLocked(ctx)
	}
	return nil
}

func (b *batchWriter[T]) flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

// flushLocked writes the buffer to a new parquet file.
// Caller must hold the lock
func (b *batchWriter[T]) flushLocked(ctx context.Context) error {
	if len(b.buffer) == 0 {
		return nil
	}

	now := time.Now()
	filename := fmt.Sprintf("%s_%s_%d.parquet", b.prefix, now.Format("20060102_150405"), now.UnixNano())
	path := filepath.Join(b.dir, filename)

	if err := parquet.WriteFile(path, b.buffer); err != nil {
		return fmt.Errorf("failed to write telemetry parquet file: %w", err)
	}
	rows := len(b.buffer)
	b.buffer = b.buffer[:0]

	if b.logger != nil {
		b.logger.Debug("Flushed telemetry parquet file", "path", path, "rows", rows)
	}

	if b.uploader != nil {
		if err := b.uploader.Upload(ctx, path); err != nil {
			return fmt.Errorf("failed to upload %s: %w", filename, err)
		}
	}
	return nil
}

// ParquetSink buffers recall logs and writes them in batches of parquet
// files under a directory.
type ParquetSink struct {
	writer *batchWriter[types.RecallLog]
}

// NewParquetSink creates the output directory and a sink flushing every
// flushSize records. uploader may be nil.
func NewParquetSink(dir string, flushSize int, uploader Uploader, logger *slog.Logger) (*ParquetSink, error) {
	w, err := newBatchWriter[types.RecallLog](dir, "recall_logs", flushSize, uploader, logger)
	if err != nil {
		return nil, err
	}
	return &ParquetSink{writer: w}, nil
}

func (p *ParquetSink) Record(ctx context.Context, log *types.RecallLog) error {
	if log == nil {
		return nil
	}
	return p.writer.add(ctx, *log)
}

// Flush writes any buffered records now.
func (p *ParquetSink) Flush(ctx context.Context) error {
	return p.writer.flush(ctx)
}

// Close flushes the remaining records.
func (p *ParquetSink) Close(ctx context.Context) error {
	return p.writer.flush(ctx)
}
