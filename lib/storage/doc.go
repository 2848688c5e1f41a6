// Package storage is a thin facade over the backing ordered key/value store
// (Pebble). It exposes exactly the primitives the engine consumes: point
// get, bounded iterators with seek, atomic write batches, point-in-time
// snapshots and size estimation.
//
// Pebble's default comparator is plain byte-lexicographic comparison, which
// is the order the datum-key encoding is built for, so no custom comparator
// is installed.
//
// Commits are serialized per store: the underlying batch apply is atomic,
// and the commit mutex makes "one commit at a time" observable to
// replication consumers.
package storage
