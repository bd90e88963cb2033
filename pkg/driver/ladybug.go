//go:build cgo

package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ladybug "github.com/LadybugDB/go-ladybug"

	"github.com/soundprediction/recall/pkg/types"
)

// LadybugSchemaQueries creates the node and relationship tables retrieval
// reads. Ladybug requires an explicit schema.
const LadybugSchemaQueries = `
    CREATE NODE TABLE IF NOT EXISTS Entity (
        uuid STRING PRIMARY KEY,
        name STRING,
        type STRING,
        user_id STRING,
        name_embedding FLOAT[],
        created_at TIMESTAMP
    );
    CREATE NODE TABLE IF NOT EXISTS Statement (
        uuid STRING PRIMARY KEY,
        fact STRING,
        fact_embedding FLOAT[],
        user_id STRING,
        space_ids STRING[],
        valid_at TIMESTAMP,
        invalid_at TIMESTAMP,
        created_at TIMESTAMP,
        recall_count INT64,
        attributes STRING
    );
    CREATE NODE TABLE IF NOT EXISTS Episode (
        uuid STRING PRIMARY KEY,
        content STRING,
        user_id STRING,
        recall_count INT64,
        created_at TIMESTAMP
    );
    CREATE REL TABLE IF NOT EXISTS HAS_SUBJECT(FROM Statement TO Entity);
    CREATE REL TABLE IF NOT EXISTS HAS_PREDICATE(FROM Statement TO Entity);
    CREATE REL TABLE IF NOT EXISTS HAS_OBJECT(FROM Statement TO Entity);
    CREATE REL TABLE IF NOT EXISTS HAS_PROVENANCE(FROM Episode TO Statement);
`

// LadybugDriverConfig holds configuration options for LadybugDriver
type LadybugDriverConfig struct {
	// Database path (defaults to ":memory:")
	DBPath string

	// Maximum threads the engine may use per query (defaults to 1)
	MaxConcurrentQueries int

	// Buffer pool size in bytes (defaults to 1GB)
	BufferPoolSize uint64

	EnableCompression bool

	// Maximum database size in bytes (defaults to 8TB)
	MaxDbSize uint64

	// ReadOnly opens the database without write access. Recall counters
	// are not persisted in this mode.
	ReadOnly bool

	// QueryTimeout bounds a single query, including the wait for the
	// connection (defaults to DefaultQueryTimeout).
	QueryTimeout time.Duration

	Logger *slog.Logger
}

// DefaultLadybugDriverConfig returns a LadybugDriverConfig with sensible defaults
func DefaultLadybugDriverConfig() *LadybugDriverConfig {
	return &LadybugDriverConfig{
		DBPath:               ":memory:",
		MaxConcurrentQueries: 1,
		BufferPoolSize:       1024 * 1024 * 1024,
		EnableCompression:    true,
		MaxDbSize:            1 << 43,
		QueryTimeout:         DefaultQueryTimeout,
	}
}

// LadybugDriver implements FactStore on an embedded Ladybug database.
type LadybugDriver struct {
	db       *ladybug.Database
	client   *ladybug.Connection
	queries  *QueryBuilder
	readOnly bool
	timeout  time.Duration
	logger   *slog.Logger

	// conn holds the single connection slot; the engine's connection is
	// not safe for concurrent use.
	conn   chan struct{}
	closed bool
}

// NewLadybugDriver opens the database at path with default settings.
func NewLadybugDriver(path string) (*LadybugDriver, error) {
	cfg := DefaultLadybugDriverConfig()
	if path != "" {
		cfg.DBPath = path
	}
	return NewLadybugDriverWithConfig(cfg)
}

// NewLadybugDriverWithConfig opens a Ladybug database and prepares its schema.
func NewLadybugDriverWithConfig(cfg *LadybugDriverConfig) (*LadybugDriver, error) {
	if cfg == nil {
		cfg = DefaultLadybugDriverConfig()
	}
	if cfg.DBPath == "" {
		cfg.DBPath = ":memory:"
	}
	if cfg.MaxConcurrentQueries <= 0 {
		cfg.MaxConcurrentQueries = 1
	}
	if cfg.BufferPoolSize == 0 {
		cfg.BufferPoolSize = 1024 * 1024 * 1024
	}
	if cfg.MaxDbSize == 0 {
		cfg.MaxDbSize = 1 << 43
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	database, err := ladybug.OpenDatabase(cfg.DBPath, ladybug.SystemConfig{
		BufferPoolSize:    cfg.BufferPoolSize,
		MaxNumThreads:     uint64(cfg.MaxConcurrentQueries),
		EnableCompression: cfg.EnableCompression,
		ReadOnly:          cfg.ReadOnly,
		MaxDbSize:         cfg.MaxDbSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ladybug database: %w", err)
	}

	client, err := ladybug.OpenConnection(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open ladybug connection: %w", err)
	}

	if cfg.QueryTimeout > 0 {
		client.SetTimeout(uint64(cfg.QueryTimeout.Milliseconds()))
	}

	d := &LadybugDriver{
		db:       database,
		client:   client,
		queries:  NewQueryBuilder(GraphProviderLadybug),
		readOnly: cfg.ReadOnly,
		timeout:  cfg.QueryTimeout,
		logger:   logger,
		conn:     make(chan struct{}, 1),
	}
	if err := d.setupSchema(); err != nil {
		d.Close(context.Background())
		return nil, err
	}
	return d, nil
}

// setupSchema loads the FTS extension and creates tables when writable.
// Extensions must be loaded on every connection.
func (k *LadybugDriver) setupSchema() error {
	if !k.readOnly {
		if _, err := k.client.Query("INSTALL FTS;"); err != nil && !strings.Contains(err.Error(), "already installed") {
			k.logger.Debug("fts extension install", "error", err)
		}
	}
	if _, err := k.client.Query("LOAD EXTENSION FTS;"); err != nil && !strings.Contains(err.Error(), "already loaded") {
		return fmt.Errorf("load fts extension: %w", err)
	}
	if k.readOnly {
		return nil
	}
	if _, err := k.client.Query(LadybugSchemaQueries); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// acquire takes the connection slot, giving up when ctx ends first.
func (k *LadybugDriver) acquire(ctx context.Context) error {
	select {
	case k.conn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		k.release()
		return err
	}
	return nil
}

func (k *LadybugDriver) release() { <-k.conn }

// run executes a query on the connection and collects rows. The query is
// interrupted when ctx ends or the configured timeout passes.
func (k *LadybugDriver) run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	ctx, cancel := withTimeout(ctx, k.timeout)
	defer cancel()

	if err := k.acquire(ctx); err != nil {
		return nil, err
	}
	defer k.release()
	if k.closed {
		return nil, ErrDriverClosed
	}

	stop := context.AfterFunc(ctx, k.client.Interrupt)
	defer stop()

	var (
		results *ladybug.QueryResult
		err     error
	)
	if len(params) > 0 {
		stmt, prepErr := k.client.Prepare(query)
		if prepErr != nil {
			return nil, fmt.Errorf("prepare: %w", prepErr)
		}
		results, err = k.client.Execute(stmt, params)
	} else {
		results, err = k.client.Query(query)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("query interrupted: %w", errors.Join(ctxErr, err))
		}
		return nil, err
	}
	defer results.Close()

	columns := results.GetColumnNames()
	rows := make([]map[string]any, 0)
	for results.HasNext() {
		tuple, err := results.Next()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		values, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, v := range values {
			if i < len(columns) {
				row[columns[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FulltextSearch implements FactStore.
func (k *LadybugDriver) FulltextSearch(ctx context.Context, query string, filter types.StatementFilter, limit int) ([]*types.Statement, error) {
	if strings.TrimSpace(query) == "" {
		return []*types.Statement{}, nil
	}
	q, params := k.queries.FulltextStatementQuery(query, filter, limit)
	rows, err := k.run(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	return statementsFromRows(rows)
}

// VectorSearch implements FactStore.
func (k *LadybugDriver) VectorSearch(ctx context.Context, embedding []float32, filter types.StatementFilter, limit int, minScore float64) ([]*types.Statement, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	q, params := k.queries.VectorStatementQuery(embedding, filter, limit, minScore)
	rows, err := k.run(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return statementsFromRows(rows)
}

// EntitySearch implements FactStore.
func (k *LadybugDriver) EntitySearch(ctx context.Context, embedding []float32, userID string, limit int, minScore float64) ([]*types.Entity, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	q, params := k.queries.EntitySeedQuery(embedding, userID, limit, minScore)
	rows, err := k.run(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("entity search: %w", err)
	}
	return entitiesFromRows(rows)
}

// Traverse implements FactStore.
func (k *LadybugDriver) Traverse(ctx context.Context, seedUUIDs []string, depth int, filter types.StatementFilter, limit int) ([]*types.Statement, error) {
	if len(seedUUIDs) == 0 {
		return []*types.Statement{}, nil
	}
	q, params := k.queries.TraversalQuery(seedUUIDs, depth, filter, limit)
	rows, err := k.run(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("traverse: %w", err)
	}
	return statementsFromRows(rows)
}

// EpisodesForStatements implements FactStore.
func (k *LadybugDriver) EpisodesForStatements(ctx context.Context, userID string, statementUUIDs []string) ([]*types.Episode, error) {
	if len(statementUUIDs) == 0 {
		return []*types.Episode{}, nil
	}
	q, params := k.queries.EpisodesForStatementsQuery(userID, statementUUIDs)
	rows, err := k.run(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("episodes for statements: %w", err)
	}
	return episodesFromRows(rows)
}

// IncrementRecallCount implements FactStore. It is a no-op on read-only databases.
func (k *LadybugDriver) IncrementRecallCount(ctx context.Context, userID string, uuids []string) error {
	if len(uuids) == 0 || k.readOnly {
		return nil
	}
	queries, params := k.queries.IncrementRecallQueries(userID, uuids)
	for _, q := range queries {
		if _, err := k.run(ctx, q, params); err != nil {
			return fmt.Errorf("increment recall count: %w", err)
		}
	}
	return nil
}

// EnsureIndexes implements FactStore. Vector similarity is computed at
// query time, so only the full-text index is created.
func (k *LadybugDriver) EnsureIndexes(ctx context.Context, dimensions int) error {
	for _, q := range k.queries.IndexQueries(dimensions) {
		if _, err := k.run(ctx, q, nil); err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// VerifyConnectivity runs a trivial query.
func (k *LadybugDriver) VerifyConnectivity(ctx context.Context) error {
	_, err := k.run(ctx, "RETURN 1 AS ok", nil)
	return err
}

func (k *LadybugDriver) Provider() GraphProvider {
	return GraphProviderLadybug
}

// Close releases the connection and database. It is safe to call twice.
func (k *LadybugDriver) Close(_ context.Context) error {
	k.conn <- struct{}{}
	defer k.release()
	if k.closed {
		return nil
	}
	k.closed = true
	if k.client != nil {
		k.client.Close()
	}
	if k.db != nil {
		k.db.Close()
	}
	return nil
}

var _ FactStore = (*LadybugDriver)(nil)
