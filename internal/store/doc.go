// Package store provides SQLite-backed durable storage for sealed slices.
//
// The store keeps three tables:
//   - runs: one row per engine run (k, capacity, final status)
//   - slices: one row per sealed slice with its commitments
//   - entries: the ordered trace entries of every slice
//
// # Ordering
//
// Slices are ordered by idx and entries by pos, both assigned by the
// engine. Every query that returns more than one row has an explicit
// ORDER BY so results are identical across reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Slice ids and commitments are computed by slice.Commit.
package store
