package telemetry

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/recall/pkg/config"
	"github.com/soundprediction/recall/pkg/types"
)

func sampleLog(id string) *types.RecallLog {
	return &types.RecallLog{
		ID:           id,
		UserID:       "u1",
		Query:        "where does alice work",
		ResultCount:  3,
		AverageScore: 0.61,
		SearchMethod: string(types.SearchMethodMultiFactorMMR),
		ElapsedMs:    42,
		LexicalCount: 5,
		VectorCount:  7,
		GraphCount:   1,
		Options:      `{"limit":10}`,
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

type recordingSink struct {
	mu      sync.Mutex
	records []*types.RecallLog
	err     error
	closed  bool
}

func (r *recordingSink) Record(_ context.Context, log *types.RecallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, log)
	return r.err
}

func (r *recordingSink) Close(context.Context) error {
	r.closed = true
	return r.err
}

type recordingUploader struct {
	paths []string
	err   error
}

func (u *recordingUploader) Upload(_ context.Context, localPath string) error {
	u.paths = append(u.paths, localPath)
	return u.err
}

func TestMultiSink(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("disk full")}
	m := NewMultiSink(failing, nil, ok)
	assert.Equal(t, 2, m.Len())

	err := m.Record(context.Background(), sampleLog("1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, ok.records, 1, "a failing sink does not stop the others")

	require.Error(t, m.Close(context.Background()))
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)

	assert.NoError(t, NewMultiSink().Record(context.Background(), sampleLog("2")))
}

func TestParquetSink(t *testing.T) {
	dir := t.TempDir()
	uploader := &recordingUploader{}
	sink, err := NewParquetSink(dir, 2, uploader, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, sampleLog("a")))
	files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	assert.Empty(t, files, "below flush size nothing is written")

	require.NoError(t, sink.Record(ctx, sampleLog("b")))
	files, _ = filepath.Glob(filepath.Join(dir, "recall_logs_*.parquet"))
	require.Len(t, files, 1)
	assert.Equal(t, files, uploader.paths)

	rows, err := parquet.ReadFile[types.RecallLog](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "multi_factor_mmr", rows[1].SearchMethod)

	require.NoError(t, sink.Record(ctx, sampleLog("c")))
	require.NoError(t, sink.Close(ctx))
	assert.Len(t, uploader.paths, 2, "close flushes the remainder")

	require.NoError(t, sink.Close(ctx), "closing an empty buffer is a no-op")
	assert.Len(t, uploader.paths, 2)
}

func TestParquetSinkUploadFailure(t *testing.T) {
	sink, err := NewParquetSink(t.TempDir(), 1, &recordingUploader{err: errors.New("403")}, nil)
	require.NoError(t, err)
	err = sink.Record(context.Background(), sampleLog("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestErrorHandler(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	h, err := NewErrorHandler(slog.NewTextHandler(&console, nil), dir, 10)
	require.NoError(t, err)

	log := slog.New(h).With("component", "search")
	ctx := context.WithValue(context.Background(), types.ContextKeyUserID, "u1")
	ctx = context.WithValue(ctx, types.ContextKeyRequestID, "req-1")

	log.InfoContext(ctx, "search complete")
	log.ErrorContext(ctx, "background task failed", "error", errors.New("timeout"))
	require.NoError(t, h.Flush(ctx))

	assert.Contains(t, console.String(), "search complete")
	assert.Contains(t, console.String(), "background task failed")

	files, _ := filepath.Glob(filepath.Join(dir, "search_errors_*.parquet"))
	require.Len(t, files, 1)
	rows, err := parquet.ReadFile[ErrorRecord](files[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "background task failed", rows[0].Message)
	assert.Equal(t, "u1", rows[0].UserID)
	assert.Equal(t, "req-1", rows[0].RequestID)
	assert.Contains(t, rows[0].Attributes, `"error":"timeout"`)
	assert.Contains(t, rows[0].Attributes, `"component":"search"`)
}

func TestSQLSinkSQLite(t *testing.T) {
	db, err := sql.Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	sink, err := NewSQLSink(db, DriverSQLite)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, sampleLog("a")))
	require.NoError(t, sink.Record(ctx, sampleLog("b")))
	require.NoError(t, sink.Record(ctx, nil))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM recall_logs").Scan(&count))
	assert.Equal(t, 2, count)

	var method string
	var elapsed int64
	require.NoError(t, db.QueryRow("SELECT search_method, elapsed_ms FROM recall_logs WHERE id = ?", "b").Scan(&method, &elapsed))
	assert.Equal(t, "multi_factor_mmr", method)
	assert.Equal(t, int64(42), elapsed)

	err = sink.Record(ctx, sampleLog("a"))
	assert.Error(t, err, "duplicate id violates the primary key")

	require.NoError(t, sink.Close(ctx))
	assert.NoError(t, db.Ping(), "a borrowed connection stays open")
}

func TestOpenSQLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	sink, err := OpenSQLSink(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, sink.Record(context.Background(), sampleLog("a")))
	require.NoError(t, sink.Close(context.Background()))

	_, err = os.Stat(path)
	assert.NoError(t, err)

	_, err = OpenSQLSink("oracle", "x")
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", placeholders(DriverMySQL, 3))
	assert.Equal(t, "?, ?", placeholders(DriverSQLite, 2))
	assert.Equal(t, "$1, $2, $3", placeholders(DriverPostgres, 3))
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"", "/tmp/x/recall_logs_1.parquet", "recall_logs_1.parquet"},
		{"telemetry", "/tmp/x/recall_logs_1.parquet", "telemetry/recall_logs_1.parquet"},
		{"/telemetry/prod/", "recall_logs_1.parquet", "telemetry/prod/recall_logs_1.parquet"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, objectName(tt.prefix, tt.path))
	}
}

func TestNewObjectStoreUploader(t *testing.T) {
	u, err := NewObjectStoreUploader(config.ObjectStoreConfig{Endpoint: "localhost:9000", Bucket: "recall", Prefix: "logs"})
	require.NoError(t, err)
	assert.Equal(t, "recall", u.bucket)

	_, err = NewObjectStoreUploader(config.ObjectStoreConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

type fakeEnqueuer struct {
	messages []posthog.Message
	closed   bool
}

func (f *fakeEnqueuer) Enqueue(msg posthog.Message) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeEnqueuer) Close() error {
	f.closed = true
	return nil
}

func TestPostHogSink(t *testing.T) {
	fake := &fakeEnqueuer{}
	sink := &PostHogSink{client: fake}

	require.NoError(t, sink.Record(context.Background(), sampleLog("a")))
	require.Len(t, fake.messages, 1)

	capture, ok := fake.messages[0].(posthog.Capture)
	require.True(t, ok)
	assert.Equal(t, SearchEvent, capture.Event)
	assert.Equal(t, "u1", capture.DistinctId)
	assert.Equal(t, 3, capture.Properties["result_count"])
	assert.NotContains(t, capture.Properties, "query")

	require.NoError(t, sink.Close(context.Background()))
	assert.True(t, fake.closed)
}

func TestNewSinks(t *testing.T) {
	m, err := NewSinks(config.TelemetryConfig{}, nil)
	require.NoError(t, err)
	assert.Zero(t, m.Len())

	m, err = NewSinks(config.TelemetryConfig{
		ParquetPath: t.TempDir(),
		FlushSize:   10,
		DbDriver:    DriverSQLite,
		DbURL:       filepath.Join(t.TempDir(), "t.db"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	require.NoError(t, m.Close(context.Background()))
}
