// Package client implements the typed RPC client of the Tessera database.
// It exposes keyspace, transaction and query operations as Go interfaces
// and forwards them to a remote server via the configured transport and
// serializer.
//
// Key Components:
//
//   - NewKeyspaceClient: Factory function that connects the transport,
//     registers the keyspace on a pinned session and returns an
//     IKeyspaceClient.
//
//   - IKeyspaceClient: Row and query operations in autocommit mode, plus
//     Begin for explicit transactions, keyspace listing, commit watching
//     and server statistics.
//
//   - ITxnClient: The same row and query operations inside one transaction,
//     plus Nest, Commit, Abort and the Dump/Load backup operations.
//
// Transactions are connection state on the server, so a keyspace client
// runs all its requests over one pinned session; transaction handles stay
// valid only on the client that created them.
//
// Usage Example:
//
//	cfg := common.ClientConfig{
//	  Endpoints:              []string{"localhost:6742"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//
//	c, _ := client.NewKeyspaceClient("default", cfg, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	defer c.Close()
//
//	txn, _ := c.Begin(client.IsolationRepeatableRead)
//	txn.PutColumns([]byte("users"), []byte("alice"),
//	  []common.ColumnData{{Name: []byte("name"), Value: []byte("A"), Timestamp: -1}})
//	txn.Commit()
//
// Performance Considerations:
//
//   - The binary serializer provides the best performance and smallest
//     payload size; JSON is useful for debugging.
//
//   - Increasing ConnectionsPerEndpoint only helps workloads without
//     transactions, since a keyspace client is pinned to one session.
//
// Thread Safety:
//
//	A keyspace client may be shared between goroutines for autocommit
//	operations. A transaction handle must be confined to one goroutine.
package client
