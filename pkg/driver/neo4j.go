package driver

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/recall/pkg/types"
)

// Neo4jDriver implements FactStore for Neo4j databases.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	queries  *QueryBuilder
	closed   atomic.Bool
}

// NewNeo4jDriver creates a new Neo4j driver instance.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	return NewNeo4jDriverWithConfig(Config{
		Provider: GraphProviderNeo4j,
		URI:      uri,
		Username: username,
		Password: password,
		Database: database,
	})
}

// NewNeo4jDriverWithConfig creates a Neo4j driver from cfg.
func NewNeo4jDriverWithConfig(cfg Config) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	timeout := cfg.QueryTimeout
	if timeout == 0 {
		timeout = DefaultQueryTimeout
	}

	return &Neo4jDriver{
		client:   client,
		database: database,
		timeout:  timeout,
		queries:  NewQueryBuilder(GraphProviderNeo4j),
	}, nil
}

// readRows runs a read query and returns each record as a map.
func (n *Neo4jDriver) readRows(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if n.closed.Load() {
		return nil, ErrDriverClosed
	}
	ctx, cancel := withTimeout(ctx, n.timeout)
	defer cancel()

	session := n.client.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: n.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, record := range records {
			rows = append(rows, record.AsMap())
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	rows, ok := result.([]map[string]any)
	if !ok {
		return nil, NewTypeConversionError("[]map[string]any", fmt.Sprintf("%T", result), "")
	}
	return rows, nil
}

// write runs each query in a single write transaction.
func (n *Neo4jDriver) write(ctx context.Context, queries []string, params map[string]any) error {
	if n.closed.Load() {
		return ErrDriverClosed
	}
	ctx, cancel := withTimeout(ctx, n.timeout)
	defer cancel()

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range queries {
			res, err := tx.Run(ctx, q, params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// FulltextSearch implements FactStore.
func (n *Neo4jDriver) FulltextSearch(ctx context.Context, query string, filter types.StatementFilter, limit int) ([]*types.Statement, error) {
	if strings.TrimSpace(query) == "" {
		return []*types.Statement{}, nil
	}
	q, params := n.queries.FulltextStatementQuery(query, filter, limit)
	rows, err := n.readRows(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	return statementsFromRows(rows)
}

// VectorSearch implements FactStore.
func (n *Neo4jDriver) VectorSearch(ctx context.Context, embedding []float32, filter types.StatementFilter, limit int, minScore float64) ([]*types.Statement, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	q, params := n.queries.VectorStatementQuery(embedding, filter, limit, minScore)
	rows, err := n.readRows(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return statementsFromRows(rows)
}

// EntitySearch implements FactStore.
func (n *Neo4jDriver) EntitySearch(ctx context.Context, embedding []float32, userID string, limit int, minScore float64) ([]*types.Entity, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	q, params := n.queries.EntitySeedQuery(embedding, userID, limit, minScore)
	rows, err := n.readRows(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("entity search: %w", err)
	}
	return entitiesFromRows(rows)
}

// Traverse implements FactStore.
func (n *Neo4jDriver) Traverse(ctx context.Context, seedUUIDs []string, depth int, filter types.StatementFilter, limit int) ([]*types.Statement, error) {
	if len(seedUUIDs) == 0 {
		return []*types.Statement{}, nil
	}
	q, params := n.queries.TraversalQuery(seedUUIDs, depth, filter, limit)
	rows, err := n.readRows(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("traverse: %w", err)
	}
	return statementsFromRows(rows)
}

// EpisodesForStatements implements FactStore.
func (n *Neo4jDriver) EpisodesForStatements(ctx context.Context, userID string, statementUUIDs []string) ([]*types.Episode, error) {
	if len(statementUUIDs) == 0 {
		return []*types.Episode{}, nil
	}
	q, params := n.queries.EpisodesForStatementsQuery(userID, statementUUIDs)
	rows, err := n.readRows(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("episodes for statements: %w", err)
	}
	return episodesFromRows(rows)
}

// IncrementRecallCount implements FactStore.
func (n *Neo4jDriver) IncrementRecallCount(ctx context.Context, userID string, uuids []string) error {
	if len(uuids) == 0 {
		return nil
	}
	queries, params := n.queries.IncrementRecallQueries(userID, uuids)
	if err := n.write(ctx, queries, params); err != nil {
		return fmt.Errorf("increment recall count: %w", err)
	}
	return nil
}

// EnsureIndexes implements FactStore.
func (n *Neo4jDriver) EnsureIndexes(ctx context.Context, dimensions int) error {
	if n.closed.Load() {
		return ErrDriverClosed
	}
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	for _, indexQuery := range n.queries.IndexQueries(dimensions) {
		res, err := session.Run(ctx, indexQuery, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "An equivalent")
}

// VerifyConnectivity checks if the driver can connect to the database.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	if n.closed.Load() {
		return ErrDriverClosed
	}
	return n.client.VerifyConnectivity(ctx)
}

func (n *Neo4jDriver) Provider() GraphProvider {
	return GraphProviderNeo4j
}

// Close closes the Neo4j driver.
func (n *Neo4jDriver) Close(ctx context.Context) error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	return n.client.Close(ctx)
}

var _ FactStore = (*Neo4jDriver)(nil)
