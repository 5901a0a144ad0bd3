// Package store provides SQLite-backed durable storage for the evaluation log.
//
// The log has two tables:
//   - machines: machine definitions keyed by content hash
//   - evaluations: one row per query, with its operating point or error code
//
// # Ordering and identity
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Every
// query that returns evaluations ends in ORDER BY seq ASC, id ASC COLLATE
// BINARY so replays read records in the same order on every machine.
//
// Evaluation IDs are content-addressed (see internal/ir/hash.go), so writing
// the same evaluation twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Evaluations must reference a stored machine
package store
