package client

import (
	"github.com/tessera-db/tessera/rpc/common"
	"github.com/tessera-db/tessera/rpc/serializer"
	"github.com/tessera-db/tessera/rpc/transport"
)

// Isolation levels on the wire (mirror the engine's values).
const (
	IsolationReadCommitted uint8 = 0
	IsolationRepeatableRead uint8 = 1
)

// --------------------------------------------------------------------------
// Interfaces
// --------------------------------------------------------------------------

// IRowOps are the data operations available both in autocommit mode and
// inside an explicit transaction.
type IRowOps interface {
	// PutColumns writes columns to (table, key)
	PutColumns(table, key []byte, cols []common.ColumnData) error
	// DeleteColumns deletes the named columns of (table, key)
	DeleteColumns(table, key []byte, names [][]byte) error
	// DeleteKey deletes every column of (table, key)
	DeleteKey(table, key []byte) error
	// GetColumn reads one column; the bool reports presence
	GetColumn(table, key, column []byte) (common.ColumnData, bool, error)
	// GetColumnValues projects the named columns of a row
	GetColumnValues(table, key []byte, names [][]byte) ([][]byte, error)
	// GetColumns reads up to maxColumns columns of a row
	GetColumns(table, key []byte, maxColumns uint32) ([]common.ColumnData, error)
	// GetSlice runs a planner query; see the server documentation for the
	// range semantics
	GetSlice(table []byte, q SliceQuery) (lastKey []byte, rows []common.RowData, err error)
	// GetSliceValues projects a fixed column list over a key range
	GetSliceValues(table []byte, keys KeySelector, names [][]byte, maxKeys uint32) (lastKey []byte, rows []common.RowData, err error)
	// CountKeys counts the distinct keys of a range
	CountKeys(table []byte, keys KeySelector) (uint64, error)
	// Exists reports whether (table, key) has at least one column
	Exists(table, key []byte) (bool, error)
	// ListTables lists the tables of the keyspace
	ListTables() ([][]byte, error)
}

// ITxnClient is a handle on one server-side transaction.
type ITxnClient interface {
	IRowOps
	// Nest opens a nested transaction
	Nest() (ITxnClient, error)
	// Commit completes the transaction
	Commit() error
	// Abort discards the transaction
	Abort() error
	// Dump produces the next backup chunk; next is nil at end of dump
	Dump(cursor []byte) (chunk, next []byte, err error)
	// Load applies one backup chunk as pending writes
	Load(chunk []byte) error
}

// IKeyspaceClient is the typed client for one keyspace on one server.
type IKeyspaceClient interface {
	IRowOps
	// Begin opens an explicit transaction
	Begin(isolation uint8) (ITxnClient, error)
	// ListKeyspaces lists all keyspace names on the server
	ListKeyspaces() ([]string, error)
	// AwaitCommit blocks until the next commit on the keyspace
	AwaitCommit() error
	// Stats returns the server's metrics in Prometheus text format
	Stats() ([]byte, error)
	// Close releases the client's connections
	Close() error
}

// --------------------------------------------------------------------------
// Query Selectors
// --------------------------------------------------------------------------

// KeySelector selects rows: an explicit list when Discrete, otherwise the
// half-open range [First, UpTo).
type KeySelector struct {
	Discrete bool
	Keys     [][]byte
	First    []byte
	UpTo     []byte
}

// SliceQuery bundles the parameters of GetSlice.
type SliceQuery struct {
	Keys       KeySelector
	ColKind    uint8 // common.ColAll | common.ColList | common.ColContinuous
	Columns    [][]byte
	ColFirst   []byte
	ColUpTo    []byte
	Reverse    bool
	MaxKeys    uint32
	MaxColumns uint32
	DecodeTs   bool
}

// --------------------------------------------------------------------------
// Client Construction
// --------------------------------------------------------------------------

// NewKeyspaceClient connects the transport, pins a session and registers
// (or selects) the keyspace on it.
//
// All requests of one client travel over the same pinned connection: the
// server keeps the keyspace selection and the open transactions per
// connection.
func NewKeyspaceClient(
	keyspace string,
	config common.ClientConfig,
	trans transport.IRPCClientTransport,
	ser serializer.IRPCSerializer,
) (IKeyspaceClient, error) {

	// Connect the transport
	if err := trans.Connect(config); err != nil {
		return nil, err
	}

	sess, err := trans.NewSession()
	if err != nil {
		trans.Close()
		return nil, err
	}

	c := &keyspaceClient{
		rpcClientAdapter: rpcClientAdapter{
			session:    sess,
			serializer: ser,
		},
		transport: trans,
	}

	// Register selects the keyspace on the server-side session.
	req := common.NewRegisterKeyspaceRequest(keyspace)
	if _, err := invokeRPCRequest(req, sess.Send, ser); err != nil {
		trans.Close()
		return nil, err
	}
	return c, nil
}

// rpcClientAdapter stores all data needed for an implementation of an RPC
// client. Used by the keyspace client and transaction handles with the
// composition pattern; txnID 0 means autocommit.
type rpcClientAdapter struct {
	session    transport.ISession
	serializer serializer.IRPCSerializer
	txnID      uint64
}

type keyspaceClient struct {
	rpcClientAdapter
	transport transport.IRPCClientTransport
}

type txnClient struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Keyspace-Level Methods
// --------------------------------------------------------------------------

func (c *keyspaceClient) Begin(isolation uint8) (ITxnClient, error) {
	req := common.NewBeginRequest("", isolation)
	resp, err := c.invoke(req)
	if err != nil {
		return nil, err
	}
	return &txnClient{rpcClientAdapter{
		session:    c.session,
		serializer: c.serializer,
		txnID:      resp.TxnID,
	}}, nil
}

func (c *keyspaceClient) ListKeyspaces() ([]string, error) {
	resp, err := c.invoke(common.NewListKeyspacesRequest())
	if err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *keyspaceClient) AwaitCommit() error {
	req := common.NewAwaitRequest(0)
	reqBytes, err := c.serializer.Serialize(*req)
	if err != nil {
		return err
	}
	respBytes, err := c.session.SendAwait(reqBytes)
	if err != nil {
		return err
	}
	resp := &common.Message{}
	if err := c.serializer.Deserialize(respBytes, resp); err != nil {
		return err
	}
	return common.ResponseError(resp)
}

func (c *keyspaceClient) Stats() ([]byte, error) {
	resp, err := c.invoke(common.NewStatsRequest())
	if err != nil {
		return nil, err
	}
	return resp.Meta, nil
}

func (c *keyspaceClient) Close() error {
	c.session.Close()
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Transaction Methods
// --------------------------------------------------------------------------

func (c *txnClient) Nest() (ITxnClient, error) {
	req := &common.Message{MsgType: common.MsgTBegin, TxnID: c.txnID}
	resp, err := c.invoke(req)
	if err != nil {
		return nil, err
	}
	return &txnClient{rpcClientAdapter{
		session:    c.session,
		serializer: c.serializer,
		txnID:      resp.TxnID,
	}}, nil
}

func (c *txnClient) Commit() error {
	_, err := c.invoke(common.NewCommitRequest(c.txnID))
	return err
}

func (c *txnClient) Abort() error {
	_, err := c.invoke(common.NewAbortRequest(c.txnID))
	return err
}

func (c *txnClient) Dump(cursor []byte) ([]byte, []byte, error) {
	resp, err := c.invoke(common.NewDumpRequest(c.txnID, cursor))
	if err != nil {
		return nil, nil, err
	}
	return resp.Chunk, resp.Cursor, nil
}

func (c *txnClient) Load(chunk []byte) error {
	_, err := c.invoke(common.NewLoadRequest(c.txnID, chunk))
	return err
}

// --------------------------------------------------------------------------
// Shared Row Operations
// --------------------------------------------------------------------------

func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(req, a.session.Send, a.serializer)
}

func (a *rpcClientAdapter) PutColumns(table, key []byte, cols []common.ColumnData) error {
	_, err := a.invoke(common.NewPutColumnsRequest(a.txnID, table, key, cols))
	return err
}

func (a *rpcClientAdapter) DeleteColumns(table, key []byte, names [][]byte) error {
	_, err := a.invoke(common.NewDeleteColumnsRequest(a.txnID, table, key, names))
	return err
}

func (a *rpcClientAdapter) DeleteKey(table, key []byte) error {
	_, err := a.invoke(common.NewDeleteKeyRequest(a.txnID, table, key))
	return err
}

func (a *rpcClientAdapter) GetColumn(table, key, column []byte) (common.ColumnData, bool, error) {
	resp, err := a.invoke(common.NewGetColumnRequest(a.txnID, table, key, column))
	if err != nil {
		return common.ColumnData{}, false, err
	}
	if !resp.Ok || len(resp.Columns) == 0 {
		return common.ColumnData{}, false, nil
	}
	return resp.Columns[0], true, nil
}

func (a *rpcClientAdapter) GetColumnValues(table, key []byte, names [][]byte) ([][]byte, error) {
	resp, err := a.invoke(common.NewGetColumnValuesRequest(a.txnID, table, key, names))
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *rpcClientAdapter) GetColumns(table, key []byte, maxColumns uint32) ([]common.ColumnData, error) {
	resp, err := a.invoke(common.NewGetColumnsRequest(a.txnID, table, key, maxColumns))
	if err != nil {
		return nil, err
	}
	return resp.Columns, nil
}

func (a *rpcClientAdapter) GetSlice(table []byte, q SliceQuery) ([]byte, []common.RowData, error) {
	req := &common.Message{
		MsgType:     common.MsgTGetSlice,
		TxnID:       a.txnID,
		Table:       table,
		Discrete:    q.Keys.Discrete,
		Keys:        q.Keys.Keys,
		KeyFirst:    q.Keys.First,
		KeyUpTo:     q.Keys.UpTo,
		ColKind:     q.ColKind,
		ColumnNames: q.Columns,
		ColFirst:    q.ColFirst,
		ColUpTo:     q.ColUpTo,
		Reverse:     q.Reverse,
		MaxKeys:     q.MaxKeys,
		MaxColumns:  q.MaxColumns,
		DecodeTs:    q.DecodeTs,
	}
	resp, err := a.invoke(req)
	if err != nil {
		return nil, nil, err
	}
	return resp.LastKey, resp.Rows, nil
}

func (a *rpcClientAdapter) GetSliceValues(table []byte, keys KeySelector, names [][]byte, maxKeys uint32) ([]byte, []common.RowData, error) {
	req := &common.Message{
		MsgType:     common.MsgTGetSliceValues,
		TxnID:       a.txnID,
		Table:       table,
		Discrete:    keys.Discrete,
		Keys:        keys.Keys,
		KeyFirst:    keys.First,
		KeyUpTo:     keys.UpTo,
		ColumnNames: names,
		MaxKeys:     maxKeys,
	}
	resp, err := a.invoke(req)
	if err != nil {
		return nil, nil, err
	}
	return resp.LastKey, resp.Rows, nil
}

func (a *rpcClientAdapter) CountKeys(table []byte, keys KeySelector) (uint64, error) {
	req := &common.Message{
		MsgType:  common.MsgTCountKeys,
		TxnID:    a.txnID,
		Table:    table,
		Discrete: keys.Discrete,
		Keys:     keys.Keys,
		KeyFirst: keys.First,
		KeyUpTo:  keys.UpTo,
	}
	resp, err := a.invoke(req)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (a *rpcClientAdapter) Exists(table, key []byte) (bool, error) {
	resp, err := a.invoke(common.NewExistsRequest(a.txnID, table, key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (a *rpcClientAdapter) ListTables() ([][]byte, error) {
	resp, err := a.invoke(common.NewListTablesRequest(a.txnID))
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}
