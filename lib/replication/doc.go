// Package replication streams committed write batches to downstream
// consumers.
//
// The Hub plugs into the engine as a commit observer: every outermost
// commit is serialized into one update payload and fanned out to the
// registered subscriptions. A Producer owns one subscription and one
// data-plane connection, pushing updates with a simple length, payload,
// checksum framing and a one-byte acknowledgement per update.
package replication
