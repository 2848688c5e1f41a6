// Package backup defines the wire format of resumable dump streams: a
// dump is a sequence of chunks, each holding sections of length-prefixed
// records grouped by table, plus an opaque cursor that tells the producer
// where to resume.
//
// The package is format only. Producing chunks from live data and applying
// them is done by the engine.
package backup
