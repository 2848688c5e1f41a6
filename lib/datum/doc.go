// Package datum fixes the physical layout of the engine's keys inside the
// backing ordered key/value store.
//
// Every logical datum (keyspace, table, key, column, timestamp) → value is
// stored under a single flat key:
//
//	0x01 ∥ u32be(ksID) ∥ selfDelim(table) ∥ selfDelim(key)
//	     ∥ selfDelim(column) ∥ u64be(MaxUint64 − tsMicros)
//
// The timestamp is complemented so that the newest version of a column sorts
// first within the column's range. Keyspace metadata records live under the
// single-byte tag 0x00, below the datum region; the end-of-database sentinel
// is the datum prefix of the reserved keyspace id MaxUint32, above every
// real datum.
package datum
