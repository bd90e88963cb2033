// Package driver provides the fact store backends retrieval runs against.
//
// FactStore is the narrow read interface over a temporal reified knowledge
// graph: statements linked to subject, predicate and object entities, and
// episodes linked to the statements they produced. Two implementations exist:
//   - Neo4j: native full-text and vector indexes
//   - Ladybug: embedded database with the FTS extension (requires CGO)
//
// # Usage
//
//	store, err := driver.NewNeo4jDriver(uri, username, password, "neo4j")
//	if err != nil {
//	    return err
//	}
//	defer store.Close(ctx)
//
//	if err := store.EnsureIndexes(ctx, 1536); err != nil {
//	    return err
//	}
//
// # Query Building
//
// QueryBuilder renders the provider-specific Cypher for each FactStore
// method. Every statement query applies the same StatementFilter clauses so
// the two backends agree on temporal and space semantics.
//
// # Type Helpers
//
// The package provides safe type conversion helpers in type_helpers.go for
// converting database results to Go types without panicking on type assertion
// failures.
package driver
