// Package engine implements the semi-structured database core: keyspace
// registration, transactions with read-committed and repeatable-read
// isolation, row/column operations, and the range, slice and count query
// planner.
//
// The engine maps logical (keyspace, table, key, column, timestamp) datums
// onto the flat ordered store via the lib/datum key schema. All reads merge
// the backing store with the in-memory overlays of the current transaction,
// so a transaction always observes its own uncommitted writes.
//
// Transactions are explicit values threaded through calls. Nested
// transactions share their parent's overlays; only the outermost Commit
// flushes to the store, as a single atomic batch.
package engine
