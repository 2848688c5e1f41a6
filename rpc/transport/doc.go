// Package transport defines the interfaces and abstractions for RPC
// communication between database clients and the server. It provides a
// common contract that all transport implementations must fulfill,
// enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Connection-pinned sessions for transaction affinity
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport
//     implementations that handles connection management and request
//     sending.
//
//   - ISession: A pinned connection handle; every request of one
//     transaction travels over the same connection, because the server
//     keeps transaction state per connection.
//
//   - IRPCServerTransport: Interface for server-side transport
//     implementations that receives requests and routes them to the
//     registered handler.
//
// All frames on the wire are protected by masked CRC32C checksums over
// both header and payload; see the base subpackage for the layout.
package transport
