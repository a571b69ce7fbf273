// Package store keeps a SQLite log of optimization runs.
//
// Each run records the fingerprints of the graph before and after the
// optimizer, the configuration used, the columns every projected input was
// narrowed to, and the chains that were fused. Runs are ordered by a
// logical sequence number, never by wall time, so listings are
// reproducible.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//
// All JSON columns hold RFC 8785 canonical JSON produced by
// ir.MarshalCanonical.
package store
