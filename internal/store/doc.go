// Package store provides SQLite-backed durable storage for formula.
//
// The store keeps an append-only record of:
//   - Runs: one row per executed command stream
//   - Commands: the stream itself, keyed by (run_id, seq)
//   - Outcomes: the final executor state of each run
//   - Diagnostics: findings of static checks, keyed by content hash
//
// # Patterns
//
// Idempotent writes:
//   - Every insert uses ON CONFLICT DO NOTHING
//   - Re-recording a run or a check is a no-op
//
// Logical time:
//   - Commands are ordered by seq, never by timestamps
//   - Reads use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Content-addressed IDs are computed in internal/ir/hash.go.
package store
