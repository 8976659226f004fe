// Package store provides SQLite-backed run history.
//
// Every batch run is recorded once it finishes:
//   - Runs: one row per batch, with its backends and summary counts
//   - Outcomes: one row per (spec, backend) outcome, in report order
//
// Run IDs are UUIDv7, so they sort by creation time. Outcome detail (table
// or graph diffs) is stored as JSON so a stored run renders exactly like a
// live one.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
