package server

import (
	"bytes"

	"github.com/VictoriaMetrics/metrics"

	"github.com/tessera-db/tessera/lib/engine"
	"github.com/tessera-db/tessera/rpc/common"
)

// NewEngineServerAdapter creates the adapter translating protocol messages
// into engine calls.
func NewEngineServerAdapter() IRPCServerAdapter {
	return &engineAdapter{}
}

type engineAdapter struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (a *engineAdapter) Handle(req *common.Message, sess *Session) *common.Message {
	switch req.MsgType {
	case common.MsgTRegisterKeyspace:
		return a.handleRegisterKeyspace(req, sess)
	case common.MsgTGetKeyspace:
		return a.handleGetKeyspace(req, sess)
	case common.MsgTListKeyspaces:
		return a.handleListKeyspaces(req, sess)
	case common.MsgTListTables:
		return a.handleListTables(req, sess)
	case common.MsgTBegin:
		return a.handleBegin(req, sess)
	case common.MsgTCommit:
		return a.handleCommit(req, sess)
	case common.MsgTAbort:
		return a.handleAbort(req, sess)
	case common.MsgTPutColumns:
		return a.handlePutColumns(req, sess)
	case common.MsgTDeleteColumns:
		return a.handleDeleteColumns(req, sess)
	case common.MsgTDeleteKey:
		return a.handleDeleteKey(req, sess)
	case common.MsgTGetColumn:
		return a.handleGetColumn(req, sess)
	case common.MsgTGetColumnValues:
		return a.handleGetColumnValues(req, sess)
	case common.MsgTGetColumns:
		return a.handleGetColumns(req, sess)
	case common.MsgTGetSlice:
		return a.handleGetSlice(req, sess)
	case common.MsgTGetSliceValues:
		return a.handleGetSliceValues(req, sess)
	case common.MsgTCountKeys:
		return a.handleCountKeys(req, sess)
	case common.MsgTExists:
		return a.handleExists(req, sess)
	case common.MsgTDump:
		return a.handleDump(req, sess)
	case common.MsgTLoad:
		return a.handleLoad(req, sess)
	case common.MsgTStats:
		return a.handleStats(req, sess)
	case common.MsgTAwait:
		return a.handleAwait(req, sess)
	default:
		return &common.Message{
			MsgType: common.MsgTError,
			Err:     "unknown message type",
		}
	}
}

// --------------------------------------------------------------------------
// Keyspace Operations
// --------------------------------------------------------------------------

func (a *engineAdapter) handleRegisterKeyspace(req *common.Message, sess *Session) *common.Message {
	ks, err := sess.eng.RegisterKeyspace(req.Keyspace)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	sess.setKeyspace(ks)
	return &common.Message{MsgType: req.MsgType, Ok: true, Count: uint64(ks.ID())}
}

func (a *engineAdapter) handleGetKeyspace(req *common.Message, sess *Session) *common.Message {
	ks, err := sess.eng.GetKeyspace(req.Keyspace)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	sess.setKeyspace(ks)
	return &common.Message{MsgType: req.MsgType, Ok: true, Count: uint64(ks.ID())}
}

func (a *engineAdapter) handleListKeyspaces(req *common.Message, sess *Session) *common.Message {
	return &common.Message{MsgType: req.MsgType, Ok: true, Names: sess.eng.ListKeyspaces()}
}

func (a *engineAdapter) handleListTables(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	tables, err := txn.ListTables()
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return &common.Message{MsgType: req.MsgType, Ok: true, Values: tables}
}

// --------------------------------------------------------------------------
// Transaction Control
// --------------------------------------------------------------------------

func (a *engineAdapter) handleBegin(req *common.Message, sess *Session) *common.Message {
	var txn *engine.Txn
	if req.TxnID != 0 {
		// Nested transaction inside an open one.
		parent, err := sess.getTxn(req.TxnID)
		if err != nil {
			return common.NewErrorResponse(req.MsgType, err)
		}
		txn = parent.Nest()
	} else {
		ks, err := sess.keyspaceFor(req.Keyspace)
		if err != nil {
			return common.NewErrorResponse(req.MsgType, err)
		}
		txn = ks.Begin(engine.Isolation(req.Isolation))
	}
	id, err := sess.addTxn(txn)
	if err != nil {
		txn.Abort(err)
		return common.NewErrorResponse(req.MsgType, err)
	}
	return &common.Message{MsgType: req.MsgType, Ok: true, TxnID: id}
}

func (a *engineAdapter) handleCommit(req *common.Message, sess *Session) *common.Message {
	txn, err := sess.removeTxn(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	if err := txn.Commit(); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return common.NewSuccessResponse(req.MsgType)
}

func (a *engineAdapter) handleAbort(req *common.Message, sess *Session) *common.Message {
	txn, err := sess.removeTxn(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	// A clean abort is a success from the client's point of view.
	txn.Abort(nil)
	return common.NewSuccessResponse(req.MsgType)
}

// --------------------------------------------------------------------------
// Row Operations
// --------------------------------------------------------------------------

func (a *engineAdapter) handlePutColumns(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	err = txn.PutColumns(req.Table, req.Key, toEngineColumns(req.Columns))
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return common.NewSuccessResponse(req.MsgType)
}

func (a *engineAdapter) handleDeleteColumns(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	err = txn.DeleteColumns(req.Table, req.Key, req.ColumnNames)
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return common.NewSuccessResponse(req.MsgType)
}

func (a *engineAdapter) handleDeleteKey(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	err = txn.DeleteKey(req.Table, req.Key)
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return common.NewSuccessResponse(req.MsgType)
}

func (a *engineAdapter) handleGetColumn(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	var column []byte
	if len(req.ColumnNames) > 0 {
		column = req.ColumnNames[0]
	}
	col, found, err := txn.GetColumn(req.Table, req.Key, column)
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	resp := &common.Message{MsgType: req.MsgType, Ok: found}
	if found {
		resp.Columns = fromEngineColumns([]engine.Column{col})
	}
	return resp
}

func (a *engineAdapter) handleGetColumnValues(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	values, err := txn.GetColumnValues(req.Table, req.Key, req.ColumnNames)
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return &common.Message{MsgType: req.MsgType, Ok: true, Values: values}
}

func (a *engineAdapter) handleGetColumns(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	cols, err := txn.GetColumns(req.Table, req.Key, int(req.MaxColumns))
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return &common.Message{MsgType: req.MsgType, Ok: true, Columns: fromEngineColumns(cols)}
}

func (a *engineAdapter) handleGetSlice(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	slice, err := txn.GetSlice(req.Table, keyRangeFrom(req), colRangeFrom(req),
		int(req.MaxKeys), int(req.MaxColumns), req.DecodeTs)
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	resp := &common.Message{MsgType: req.MsgType, Ok: true, LastKey: slice.LastKey}
	resp.Rows = make([]common.RowData, len(slice.Keys))
	for i, kd := range slice.Keys {
		resp.Rows[i] = common.RowData{
			Key:        kd.Key,
			LastColumn: kd.LastColumn,
			Columns:    fromEngineColumns(kd.Columns),
		}
	}
	return resp
}

func (a *engineAdapter) handleGetSliceValues(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	lastKey, rows, err := txn.GetSliceValues(req.Table, keyRangeFrom(req),
		req.ColumnNames, int(req.MaxKeys))
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	resp := &common.Message{MsgType: req.MsgType, Ok: true, LastKey: lastKey}
	resp.Rows = make([]common.RowData, len(rows))
	for i, row := range rows {
		cols := make([]common.ColumnData, len(row.Values))
		for j, v := range row.Values {
			cols[j] = common.ColumnData{Name: req.ColumnNames[j], Value: v}
		}
		resp.Rows[i] = common.RowData{Key: row.Key, Columns: cols}
	}
	return resp
}

func (a *engineAdapter) handleCountKeys(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	n, err := txn.CountKeys(req.Table, keyRangeFrom(req))
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return &common.Message{MsgType: req.MsgType, Ok: true, Count: uint64(n)}
}

func (a *engineAdapter) handleExists(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	found, err := txn.ExistsKey(req.Table, req.Key)
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return &common.Message{MsgType: req.MsgType, Ok: found}
}

// --------------------------------------------------------------------------
// Backup
// --------------------------------------------------------------------------

func (a *engineAdapter) handleDump(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	chunk, next, err := txn.DumpChunk(req.Cursor)
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return &common.Message{MsgType: req.MsgType, Ok: true, Chunk: chunk, Cursor: next}
}

func (a *engineAdapter) handleLoad(req *common.Message, sess *Session) *common.Message {
	txn, finish, err := sess.txnFor(req.TxnID)
	if err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	err = txn.LoadChunk(req.Chunk)
	if err = finish(err); err != nil {
		return common.NewErrorResponse(req.MsgType, err)
	}
	return common.NewSuccessResponse(req.MsgType)
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

func (a *engineAdapter) handleStats(req *common.Message, _ *Session) *common.Message {
	var buf bytes.Buffer
	metrics.WritePrometheus(&buf, true)
	return &common.Message{MsgType: req.MsgType, Ok: true, Meta: buf.Bytes()}
}

// handleAwait blocks until the next commit on the session's keyspace. The
// client sends these with odd request ids so no read timeout applies.
func (a *engineAdapter) handleAwait(req *common.Message, sess *Session) *common.Message {
	var ks *engine.Keyspace
	if req.TxnID != 0 {
		txn, err := sess.getTxn(req.TxnID)
		if err != nil {
			return common.NewErrorResponse(req.MsgType, err)
		}
		ks = txn.Keyspace()
	} else {
		var err error
		ks, err = sess.keyspace()
		if err != nil {
			return common.NewErrorResponse(req.MsgType, err)
		}
	}
	<-ks.AwaitCommit()
	return common.NewSuccessResponse(req.MsgType)
}

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

// keyspaceFor resolves a request keyspace: the named one when given,
// otherwise the session's selection.
func (s *Session) keyspaceFor(name string) (*engine.Keyspace, error) {
	if name == "" {
		return s.keyspace()
	}
	ks, err := s.eng.GetKeyspace(name)
	if err != nil {
		return nil, err
	}
	s.setKeyspace(ks)
	return ks, nil
}

// toEngineColumns converts wire columns. A negative wire timestamp
// requests the commit timestamp; zero is a legal explicit timestamp.
func toEngineColumns(cols []common.ColumnData) []engine.Column {
	out := make([]engine.Column, len(cols))
	for i, c := range cols {
		ts := c.Timestamp
		if ts < 0 {
			ts = engine.AutoTimestamp
		}
		out[i] = engine.Column{Name: c.Name, Value: c.Value, TsMicros: ts}
	}
	return out
}

func fromEngineColumns(cols []engine.Column) []common.ColumnData {
	out := make([]common.ColumnData, len(cols))
	for i, c := range cols {
		out[i] = common.ColumnData{Name: c.Name, Value: c.Value, Timestamp: c.TsMicros}
	}
	return out
}

func keyRangeFrom(req *common.Message) engine.KeyRange {
	if req.Discrete {
		return engine.DiscreteKeys(req.Keys...)
	}
	return engine.ContinuousKeys(req.KeyFirst, req.KeyUpTo)
}

func colRangeFrom(req *common.Message) engine.ColumnRange {
	switch req.ColKind {
	case common.ColList:
		return engine.ColumnList(req.ColumnNames...)
	case common.ColContinuous:
		return engine.ContinuousColumns(req.ColFirst, req.ColUpTo, req.Reverse)
	default:
		return engine.AllColumns()
	}
}
