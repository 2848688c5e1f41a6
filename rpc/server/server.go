package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tessera-db/tessera/lib/engine"
	"github.com/tessera-db/tessera/rpc/common"
	"github.com/tessera-db/tessera/rpc/serializer"
	"github.com/tessera-db/tessera/rpc/transport"
)

var Logger = common.GetLogger("rpc")

// NewRPCServer creates a new RPC server on top of an initialized engine.
// It takes a config, engine, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		eng,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	eng *engine.Engine,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		engine:     eng,
		transport:  transport,
		serializer: serializer,
		adapter:    NewEngineServerAdapter(),
		sessions:   xsync.NewMapOf[uint64, *Session](),
	}
}

// RPCServer dispatches framed requests onto the engine. Each client
// connection owns one Session holding its open transactions.
type RPCServer struct {
	config     common.ServerConfig
	engine     *engine.Engine
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	sessions   *xsync.MapOf[uint64, *Session]
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(connID uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Get (or lazily create) the connection's session
		sess, _ := s.sessions.LoadOrCompute(connID, func() *Session {
			return newSession(s.engine)
		})

		// Decode the request
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = &common.Message{
				MsgType: common.MsgTError,
				ErrKind: common.EKEncoding,
				Err:     fmt.Sprintf("failed to deserialize request: %s", err),
			}
		} else {
			start := time.Now()
			respMsg = s.adapter.Handle(&msg, sess)
			observeRequest(msg.MsgType, start)
		}

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %s", err)
			fallback, _ := s.serializer.Serialize(common.Message{
				MsgType: common.MsgTError,
				ErrKind: common.EKEncoding,
				Err:     fmt.Sprintf("failed to serialize response: %s", err),
			})
			return fallback
		}
		return val
	})

	// A closing connection aborts everything it left open.
	s.transport.RegisterCloseHandler(func(connID uint64) {
		if sess, ok := s.sessions.LoadAndDelete(connID); ok {
			sess.close()
		}
	})
}

func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}
	s.registerTransportHandler()
	return nil
}

// Serve starts the RPC server
// This function will also initialize the server and start the transport layer
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// observeRequest records the request counter and latency histogram for one
// handled request. The Stats request reports these in Prometheus text
// format.
func observeRequest(t common.MessageType, start time.Time) {
	metrics.GetOrCreateCounter(
		fmt.Sprintf(`tessera_requests_total{type=%q}`, t.String())).Inc()
	metrics.GetOrCreateHistogram(
		fmt.Sprintf(`tessera_request_duration_seconds{type=%q}`, t.String())).
		UpdateDuration(start)
}
