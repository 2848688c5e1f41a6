package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Wire Data Structures
// --------------------------------------------------------------------------

// ColumnData is one column on the wire.
type ColumnData struct {
	Name  []byte `json:"name"`
	Value []byte `json:"value,omitempty"`
	// Timestamp in microseconds since the Unix epoch; -1 requests the
	// commit timestamp.
	Timestamp int64 `json:"ts,omitempty"`
}

// RowData is one row of a slice response.
type RowData struct {
	Key        []byte       `json:"key"`
	LastColumn []byte       `json:"last_column,omitempty"`
	Columns    []ColumnData `json:"columns,omitempty"`
}

// Column range kinds on the wire.
const (
	ColAll        uint8 = 0
	ColList       uint8 = 1
	ColContinuous uint8 = 2
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Addressing
	Keyspace string `json:"keyspace,omitempty"` // Used for: RegisterKeyspace, GetKeyspace, Begin
	Table    []byte `json:"table,omitempty"`    // Used for: row and slice operations
	TxnID    uint64 `json:"txn_id,omitempty"`   // Session-local transaction handle; 0 = autocommit

	// Row addressing and payload
	Key         []byte       `json:"key,omitempty"`
	Keys        [][]byte     `json:"keys,omitempty"`         // Discrete key range
	Discrete    bool         `json:"discrete,omitempty"`     // Keys is authoritative even when empty
	KeyFirst    []byte       `json:"key_first,omitempty"`    // Continuous key range, inclusive
	KeyUpTo     []byte       `json:"key_up_to,omitempty"`    // Continuous key range, exclusive
	Columns     []ColumnData `json:"columns,omitempty"`      // Put payload, read responses
	ColumnNames [][]byte     `json:"column_names,omitempty"` // Delete / projection requests
	ColKind     uint8        `json:"col_kind,omitempty"`
	ColFirst    []byte       `json:"col_first,omitempty"`
	ColUpTo     []byte       `json:"col_up_to,omitempty"`
	Reverse     bool         `json:"reverse,omitempty"`
	MaxKeys     uint32       `json:"max_keys,omitempty"`
	MaxColumns  uint32       `json:"max_columns,omitempty"`
	DecodeTs    bool         `json:"decode_ts,omitempty"`

	// Transaction control
	Isolation uint8 `json:"isolation,omitempty"` // Used for: Begin

	// Backup
	Cursor []byte `json:"cursor,omitempty"` // Dump resume position, opaque
	Chunk  []byte `json:"chunk,omitempty"`  // Dump response / Load request payload

	// Response only fields
	Ok      bool      `json:"ok,omitempty"`
	LastKey []byte    `json:"last_key,omitempty"`
	Rows    []RowData `json:"rows,omitempty"`
	Values  [][]byte  `json:"values,omitempty"`
	Count   uint64    `json:"count,omitempty"`
	Names   []string  `json:"names,omitempty"`
	ErrKind ErrorKind `json:"err_kind,omitempty"`
	Err     string    `json:"err,omitempty"` // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Stats payload, otherwise unused
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRegisterKeyspaceRequest creates a new RegisterKeyspace request
func NewRegisterKeyspaceRequest(keyspace string) *Message {
	return &Message{MsgType: MsgTRegisterKeyspace, Keyspace: keyspace}
}

// NewGetKeyspaceRequest creates a new GetKeyspace request
func NewGetKeyspaceRequest(keyspace string) *Message {
	return &Message{MsgType: MsgTGetKeyspace, Keyspace: keyspace}
}

// NewListKeyspacesRequest creates a new ListKeyspaces request
func NewListKeyspacesRequest() *Message {
	return &Message{MsgType: MsgTListKeyspaces}
}

// NewListTablesRequest creates a new ListTables request
func NewListTablesRequest(txnID uint64) *Message {
	return &Message{MsgType: MsgTListTables, TxnID: txnID}
}

// NewBeginRequest creates a new Begin request
func NewBeginRequest(keyspace string, isolation uint8) *Message {
	return &Message{MsgType: MsgTBegin, Keyspace: keyspace, Isolation: isolation}
}

// NewCommitRequest creates a new Commit request
func NewCommitRequest(txnID uint64) *Message {
	return &Message{MsgType: MsgTCommit, TxnID: txnID}
}

// NewAbortRequest creates a new Abort request
func NewAbortRequest(txnID uint64) *Message {
	return &Message{MsgType: MsgTAbort, TxnID: txnID}
}

// NewPutColumnsRequest creates a new PutColumns request
func NewPutColumnsRequest(txnID uint64, table, key []byte, cols []ColumnData) *Message {
	return &Message{MsgType: MsgTPutColumns, TxnID: txnID, Table: table, Key: key, Columns: cols}
}

// NewDeleteColumnsRequest creates a new DeleteColumns request
func NewDeleteColumnsRequest(txnID uint64, table, key []byte, names [][]byte) *Message {
	return &Message{MsgType: MsgTDeleteColumns, TxnID: txnID, Table: table, Key: key, ColumnNames: names}
}

// NewDeleteKeyRequest creates a new DeleteKey request
func NewDeleteKeyRequest(txnID uint64, table, key []byte) *Message {
	return &Message{MsgType: MsgTDeleteKey, TxnID: txnID, Table: table, Key: key}
}

// NewGetColumnRequest creates a new GetColumn request
func NewGetColumnRequest(txnID uint64, table, key, column []byte) *Message {
	return &Message{MsgType: MsgTGetColumn, TxnID: txnID, Table: table, Key: key, ColumnNames: [][]byte{column}}
}

// NewGetColumnValuesRequest creates a new GetColumnValues request
func NewGetColumnValuesRequest(txnID uint64, table, key []byte, names [][]byte) *Message {
	return &Message{MsgType: MsgTGetColumnValues, TxnID: txnID, Table: table, Key: key, ColumnNames: names}
}

// NewGetColumnsRequest creates a new GetColumns request
func NewGetColumnsRequest(txnID uint64, table, key []byte, maxColumns uint32) *Message {
	return &Message{MsgType: MsgTGetColumns, TxnID: txnID, Table: table, Key: key, MaxColumns: maxColumns}
}

// NewExistsRequest creates a new Exists request
func NewExistsRequest(txnID uint64, table, key []byte) *Message {
	return &Message{MsgType: MsgTExists, TxnID: txnID, Table: table, Key: key}
}

// NewCountKeysRequest creates a new CountKeys request
func NewCountKeysRequest(txnID uint64, table []byte) *Message {
	return &Message{MsgType: MsgTCountKeys, TxnID: txnID, Table: table}
}

// NewDumpRequest creates a new Dump request
func NewDumpRequest(txnID uint64, cursor []byte) *Message {
	return &Message{MsgType: MsgTDump, TxnID: txnID, Cursor: cursor}
}

// NewLoadRequest creates a new Load request
func NewLoadRequest(txnID uint64, chunk []byte) *Message {
	return &Message{MsgType: MsgTLoad, TxnID: txnID, Chunk: chunk}
}

// NewStatsRequest creates a new Stats request
func NewStatsRequest() *Message {
	return &Message{MsgType: MsgTStats}
}

// NewAwaitRequest creates a new Await request. The response is deferred
// until the next commit on the transaction's keyspace.
func NewAwaitRequest(txnID uint64) *Message {
	return &Message{MsgType: MsgTAwait, TxnID: txnID}
}

// NewSuccessResponse creates a generic success response for msgType
func NewSuccessResponse(msgType MessageType) *Message {
	return &Message{MsgType: msgType, Ok: true}
}

// NewErrorResponse creates an error response carrying the typed kind
func NewErrorResponse(msgType MessageType, err error) *Message {
	kind, msg := Classify(err)
	return &Message{MsgType: msgType, ErrKind: kind, Err: msg}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:          "success",
	MsgTError:            "error",
	MsgTRegisterKeyspace: "registerKeyspace",
	MsgTGetKeyspace:      "getKeyspace",
	MsgTListKeyspaces:    "listKeyspaces",
	MsgTListTables:       "listTables",
	MsgTBegin:            "begin",
	MsgTCommit:           "commit",
	MsgTAbort:            "abort",
	MsgTPutColumns:       "putColumns",
	MsgTDeleteColumns:    "deleteColumns",
	MsgTDeleteKey:        "deleteKey",
	MsgTGetColumn:        "getColumn",
	MsgTGetColumnValues:  "getColumnValues",
	MsgTGetColumns:       "getColumns",
	MsgTGetSlice:         "getSlice",
	MsgTGetSliceValues:   "getSliceValues",
	MsgTCountKeys:        "countKeys",
	MsgTExists:           "exists",
	MsgTDump:             "dump",
	MsgTLoad:             "load",
	MsgTStats:            "stats",
	MsgTAwait:            "await",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for typ, name := range msgTypeNames {
		if name == s {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Keyspace operations

	MsgTRegisterKeyspace // Register (or look up) a keyspace
	MsgTGetKeyspace      // Look up a keyspace, error when absent
	MsgTListKeyspaces    // List keyspace names
	MsgTListTables       // List tables of the session keyspace

	// Transaction control

	MsgTBegin  // Begin a transaction (or nest into TxnID)
	MsgTCommit // Commit a transaction
	MsgTAbort  // Abort a transaction

	// Row operations

	MsgTPutColumns
	MsgTDeleteColumns
	MsgTDeleteKey
	MsgTGetColumn
	MsgTGetColumnValues
	MsgTGetColumns
	MsgTGetSlice
	MsgTGetSliceValues
	MsgTCountKeys
	MsgTExists

	// Backup

	MsgTDump
	MsgTLoad

	// Introspection

	MsgTStats
	MsgTAwait // Block until the next commit on the keyspace
)
