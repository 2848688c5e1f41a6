package server

import (
	"sync"

	"github.com/tessera-db/tessera/lib/engine"
	"github.com/tessera-db/tessera/rpc/common"
)

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// Session is the per-connection server state: the selected keyspace and
// the transactions the connection has open. Requests with TxnID 0 run as
// autocommit transactions against the selected keyspace.
type Session struct {
	eng *engine.Engine

	mu         sync.Mutex
	ks         *engine.Keyspace
	txns       map[uint64]*engine.Txn
	nextTxnID  uint64
	closed     bool
}

func newSession(eng *engine.Engine) *Session {
	return &Session{
		eng:  eng,
		txns: make(map[uint64]*engine.Txn),
	}
}

// close aborts every transaction the connection left open.
func (s *Session) close() {
	s.mu.Lock()
	txns := s.txns
	s.txns = nil
	s.closed = true
	s.mu.Unlock()

	for _, txn := range txns {
		txn.Abort(common.NewError(common.EKClosed, "connection closed"))
	}
}

// setKeyspace selects the session's keyspace for subsequent requests.
func (s *Session) setKeyspace(ks *engine.Keyspace) {
	s.mu.Lock()
	s.ks = ks
	s.mu.Unlock()
}

// keyspace returns the selected keyspace.
func (s *Session) keyspace() (*engine.Keyspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ks == nil {
		return nil, common.NewError(common.EKUnknownKeyspace, "no keyspace selected")
	}
	return s.ks, nil
}

// addTxn registers an open transaction and returns its session-local id.
func (s *Session) addTxn(txn *engine.Txn) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, common.NewError(common.EKClosed, "session closed")
	}
	s.nextTxnID++
	id := s.nextTxnID
	s.txns[id] = txn
	return id, nil
}

// getTxn looks up an open transaction.
func (s *Session) getTxn(id uint64) (*engine.Txn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return nil, common.NewError(common.EKUnknownTxn, "transaction not found")
	}
	return txn, nil
}

// removeTxn takes an open transaction out of the session.
func (s *Session) removeTxn(id uint64) (*engine.Txn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return nil, common.NewError(common.EKUnknownTxn, "transaction not found")
	}
	delete(s.txns, id)
	return txn, nil
}

// txnFor resolves the transaction a request runs in. TxnID 0 starts a
// read-committed autocommit transaction; the returned finish function
// commits or aborts it with the operation's outcome. For explicit
// transactions finish is a no-op and returns the operation error
// unchanged.
func (s *Session) txnFor(id uint64) (*engine.Txn, func(error) error, error) {
	if id != 0 {
		txn, err := s.getTxn(id)
		if err != nil {
			return nil, nil, err
		}
		return txn, func(opErr error) error { return opErr }, nil
	}

	ks, err := s.keyspace()
	if err != nil {
		return nil, nil, err
	}
	txn := ks.Begin(engine.ReadCommitted)
	finish := func(opErr error) error {
		if opErr != nil {
			txn.Abort(opErr)
			return opErr
		}
		return txn.Commit()
	}
	return txn, finish, nil
}
