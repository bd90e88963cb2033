package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/recall/pkg/types"
)

// ErrorRecord is a single error log entry in parquet form.
type ErrorRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Message       string    `parquet:"message"`
	UserID        string    `parquet:"user_id"`
	RequestID     string    `parquet:"request_id"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"` // JSON string
}

// ErrorHandler is a slog.Handler that passes every record on and also
// writes error records to parquet files. Loggers derived with WithAttrs or
// WithGroup share one buffer.
type ErrorHandler struct {
	next   slog.Handler
	writer *batchWriter[ErrorRecord]
	attrs  []slog.Attr
}

// NewErrorHandler creates an ErrorHandler writing under outputDir.
func NewErrorHandler(next slog.Handler, outputDir string, flushSize int) (*ErrorHandler, error) {
	w, err := newBatchWriter[ErrorRecord](outputDir, "search_errors", flushSize, nil, nil)
	if err != nil {
		return nil, err
	}
	return &ErrorHandler{next: next, writer: w}, nil
}

// Enabled implements slog.Handler
func (h *ErrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ErrorHandler) Handle(ctx context.Context, r slog.Record) error {
	// Always pass to next handler first
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level < slog.LevelError {
		return nil
	}

	var userID, requestID, requestSource string
	if v, ok := ctx.Value(types.ContextKeyUserID).(string); ok {
		userID = v
	}
	if v, ok := ctx.Value(types.ContextKeyRequestID).(string); ok {
		requestID = v
	}
	if v, ok := ctx.Value(types.ContextKeyRequestSource).(string); ok {
		requestSource = v
	}

	attrs := make(map[string]interface{})
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = attrValue(a.Value)
		return true
	})
	attrsJSON, _ := json.Marshal(attrs)

	var sourceFile string
	var line int
	if r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		sourceFile, line = f.File, f.Line
	}

	// Writes are best effort; a telemetry failure never fails the log call.
	_ = h.writer.add(ctx, ErrorRecord{
		ID:            uuid.New().String(),
		Timestamp:     r.Time.UTC(),
		Level:         r.Level.String(),
		Message:       r.Message,
		UserID:        userID,
		RequestID:     requestID,
		RequestSource: requestSource,
		SourceFile:    sourceFile,
		LineNumber:    line,
		Attributes:    string(attrsJSON),
	})
	return nil
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}

// Flush writes any buffered error records.
func (h *ErrorHandler) Flush(ctx context.Context) error {
	return h.writer.flush(ctx)
}

// WithAttrs implements slog.Handler
func (h *ErrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ErrorHandler{
		next:   h.next.WithAttrs(attrs),
		writer: h.writer,
		attrs:  merged,
	}
}

// WithGroup implements slog.Handler
func (h *ErrorHandler) WithGroup(name string) slog.Handler {
	return &ErrorHandler{
		next:   h.next.WithGroup(name),
		writer: h.writer,
		attrs:  h.attrs,
	}
}
