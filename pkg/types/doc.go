// Package types defines the core data types shared across recall.
//
// This package contains the fundamental types used throughout recall:
//   - Statement: a reified (subject, predicate, object) fact with temporal validity
//   - Entity: a named node used to seed graph traversal
//   - Episode: the source document or conversation chunk a statement came from
//   - SearchOptions: per-call retrieval options with their defaults
//   - SearchResult: the episodes and facts returned to the caller
//   - RecallLog: the immutable telemetry record written for every search
//
// # Temporal validity
//
// A statement is valid at time T when ValidAt <= T and InvalidAt is nil or
// after T. Statement.IsValidAt implements that check and the graph stores
// apply the same predicate in their queries.
//
// # Options
//
// SearchOptions fields are all optional. WithDefaults fills the zero values:
//
//	opts := (&types.SearchOptions{Limit: 5}).WithDefaults(time.Now())
//	if err := opts.Validate(); err != nil {
//	    // Handle validation error
//	}
package types
