package transport

import (
	"github.com/tessera-db/tessera/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// This function is called by a server transport layer when a request is
// received. connID identifies the client connection the request arrived
// on, so that handlers can keep per-connection session state.
type ServerHandleFunc func(connID uint64, req []byte) (resp []byte)

// ServerCloseFunc is called once when a client connection terminates, after
// its last in-flight request has completed.
type ServerCloseFunc func(connID uint64)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// RegisterCloseHandler registers the connection-teardown callback
	RegisterCloseHandler(handler ServerCloseFunc)
	// Listen starts the transport layer and listens for incoming requests
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// ISession is a handle on one pinned client connection. Transaction state
// lives in the server-side session of a connection, so every request of a
// transaction must travel over the same connection.
type ISession interface {
	// Send sends a request over the pinned connection
	Send(req []byte) (resp []byte, err error)
	// SendAwait sends a request whose response may be deferred
	// indefinitely (await-style requests); no read timeout applies and the
	// request id is allocated odd
	SendAwait(req []byte) (resp []byte, err error)
	// Close releases the pin; the underlying connection stays open
	Close() error
}

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a stateless request on any connection (round robin)
	Send(req []byte) (resp []byte, err error)
	// NewSession pins one connection for transaction-scoped requests
	NewSession() (ISession, error)
	// Close closes the transport connection
	Close() error
}
