// Package utils provides the concurrency and recovery helpers shared by the
// retrieval pipeline.
//
//   - Panic recovery for goroutines (recovery.go)
//   - Bounded fan-out with ordered results (concurrent.go)
//   - A detached background task queue for search side effects (queue.go)
//   - Vector similarity (vector.go)
package utils
