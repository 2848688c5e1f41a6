// Package dataplane implements the bulk-transfer side channel of the
// server: fetching dump snapshot files and subscribing to the live update
// stream.
//
// The command plane (package rpc/server) carries request/response
// messages; the data plane carries streams. A data-plane connection starts
// with a version handshake, then issues exactly one operation:
//
//	GetFile(dumpID, offset, name)  fetch one file of a dump snapshot
//	GetUpdates(dumpID)             stream committed batches from now on
//
// and the connection is dedicated to that operation until it closes.
package dataplane
