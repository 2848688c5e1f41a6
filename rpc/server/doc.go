// Package server implements the command-plane RPC server of the Tessera
// database. Requests arrive as framed, serialized Messages over a pluggable
// transport; the engine adapter translates them into engine operations and
// builds the responses.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for server adapters,
//     with the Handle method that processes one request against the
//     connection's session.
//
//   - NewEngineServerAdapter: Factory function creating the adapter that maps
//     the Message protocol onto keyspaces, transactions and queries of an
//     engine.Engine.
//
//   - Session: Per-connection state. It pins the selected keyspace and the
//     open transactions of the connection; transaction ids are only
//     meaningful on the connection that created them. When a connection
//     closes, its unfinished transactions are aborted.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:      "0.0.0.0:6742",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  eng,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Request handling is instrumented with VictoriaMetrics counters and
// latency summaries per message type, exposed through the Stats operation.
//
// Thread Safety:
//
//	The server handles concurrent requests across multiple connections;
//	requests on one connection are processed independently. The Serve
//	method is not thread-safe and should be called only once.
package server
