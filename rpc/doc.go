// Package rpc provides the communication layer of the Tessera database:
// the command plane carrying request/response messages between clients and
// the server, and the data plane carrying bulk streams.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, the error
//     taxonomy and logging.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets) and CRC-protected framing.
//
//   - serializer: Message serialization with multiple format options
//     (Binary, JSON, GOB) for converting between Message objects and byte
//     arrays.
//
//   - client: The typed keyspace/transaction client applications use to
//     talk to a remote server.
//
//   - server: The command-plane server wiring transport, serializer and the
//     engine adapter together.
//
//   - dataplane: The bulk side channel for dump snapshot files and the live
//     replication update stream.
package rpc
