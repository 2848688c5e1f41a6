// Package cmd implements the command-line interface for the Tessera
// database. It provides a hierarchical command structure with operations
// for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the Tessera server
//   - dump: Resumable backup of a keyspace into a local file
//   - load: Restore of a backup file into a keyspace
//   - repl: Interactive shell against a running server
//   - perf: Load generator reporting throughput and latency
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See tessera -help for a list of all commands.
package cmd
