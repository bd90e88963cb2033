package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql and Dolt
	_ "github.com/lib/pq"              // postgres
	_ "modernc.org/sqlite"             // sqlite

	"github.com/soundprediction/recall/pkg/types"
)

// SQL drivers accepted by OpenSQLSink.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const recallLogColumns = "id, user_id, query, result_count, average_score, search_method, elapsed_ms, lexical_count, vector_count, graph_count, options, created_at"

// SQLSink writes each recall log as a row of a SQL table.
type SQLSink struct {
	db        *sql.DB
	driver    string
	tableName string
	insert    string
	owned     bool
}

// OpenSQLSink opens a connection with the named driver and prepares the
// recall log table. The sink owns the connection and closes it on Close.
func OpenSQLSink(driver, dsn string) (*SQLSink, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s telemetry database: %w", driver, err)
	}
	s, err := NewSQLSink(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLSink creates a SQLSink on an existing connection, creating the
// table when missing.
func NewSQLSink(db *sql.DB, driver string) (*SQLSink, error) {
	s := &SQLSink{
		db:        db,
		driver:    driver,
		tableName: "recall_logs",
	}
	s.insert = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.tableName, recallLogColumns, placeholders(driver, 12))

	if err := s.ensureTable(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure telemetry table: %w", err)
	}
	return s, nil
}

func placeholders(driver string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if driver == DriverPostgres {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func (s *SQLSink) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(255),
			query TEXT,
			result_count INT,
			average_score DOUBLE PRECISION,
			search_method VARCHAR(32),
			elapsed_ms BIGINT,
			lexical_count INT,
			vector_count INT,
			graph_count INT,
			options TEXT,
			created_at TIMESTAMP
		)
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *SQLSink) Record(ctx context.Context, log *types.RecallLog) error {
	if log == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.insert,
		log.ID,
		log.UserID,
		log.Query,
		log.ResultCount,
		log.AverageScore,
		log.SearchMethod,
		log.ElapsedMs,
		log.LexicalCount,
		log.VectorCount,
		log.GraphCount,
		log.Options,
		log.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recall log: %w", err)
	}
	return nil
}

// Close closes the connection when the sink opened it.
func (s *SQLSink) Close(_ context.Context) error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
