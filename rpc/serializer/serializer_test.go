package serializer

import (
	"reflect"
	"testing"

	"github.com/tessera-db/tessera/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// PutColumns request
		{
			MsgType: common.MsgTPutColumns,
			Table:   []byte("users"),
			TxnID:   7,
			Key:     []byte("alice"),
			Columns: []common.ColumnData{
				{Name: []byte("name"), Value: []byte("A"), Timestamp: -1},
				{Name: []byte("age"), Value: []byte("30"), Timestamp: 1234567890},
			},
		},

		// GetColumn response
		{
			MsgType: common.MsgTGetColumn,
			Ok:      true,
			Columns: []common.ColumnData{
				{Name: []byte("name"), Value: []byte("A"), Timestamp: 99},
			},
		},

		// GetSlice request with a continuous key range and column list
		{
			MsgType:     common.MsgTGetSlice,
			TxnID:       3,
			Table:       []byte("t"),
			KeyFirst:    []byte("a"),
			KeyUpTo:     []byte("z"),
			ColKind:     common.ColList,
			ColumnNames: [][]byte{[]byte("c1"), []byte("c2")},
			Reverse:     true,
			MaxKeys:     100,
			MaxColumns:  10,
			DecodeTs:    true,
		},

		// GetSlice request with a discrete key list
		{
			MsgType:  common.MsgTGetSlice,
			Table:    []byte("t"),
			Discrete: true,
			Keys:     [][]byte{[]byte("k1"), []byte("k2")},
		},

		// GetSlice response with rows
		{
			MsgType: common.MsgTGetSlice,
			LastKey: []byte("k2"),
			Rows: []common.RowData{
				{
					Key:        []byte("k1"),
					LastColumn: []byte("c2"),
					Columns: []common.ColumnData{
						{Name: []byte("c1"), Value: []byte("v1"), Timestamp: 1},
						{Name: []byte("c2"), Value: []byte("v2"), Timestamp: 2},
					},
				},
				{Key: []byte("k2")},
			},
		},

		// Dump request / response
		{
			MsgType: common.MsgTDump,
			TxnID:   1,
			Cursor:  []byte{0x01, 0x00, 0x00, 0x00},
			Chunk:   []byte("chunkdata"),
		},

		// Begin request
		{
			MsgType:   common.MsgTBegin,
			Keyspace:  "users",
			Isolation: 1,
		},

		// ListKeyspaces response
		{
			MsgType: common.MsgTListKeyspaces,
			Names:   []string{"a", "b", "c"},
		},

		// CountKeys response
		{
			MsgType: common.MsgTCountKeys,
			Count:   42,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			ErrKind: common.EKUnknownKeyspace,
			Err:     "unknown keyspace \"nope\"",
		},

		// Stats response
		{
			MsgType: common.MsgTStats,
			Meta:    []byte("tessera_requests_total 1\n"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTAwait; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	// Nil and empty byte slices must survive a round trip distinctly: a
	// missing column value is nil, a present-but-empty value is not.
	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty but non-nil table",
			msg:  common.Message{MsgType: common.MsgTListTables, Table: []byte{}},
		},
		{
			name: "Nil column value",
			msg: common.Message{
				MsgType: common.MsgTGetColumn,
				Ok:      true,
				Columns: []common.ColumnData{{Name: []byte("c"), Value: nil}},
			},
		},
		{
			name: "Empty column value",
			msg: common.Message{
				MsgType: common.MsgTGetColumn,
				Ok:      true,
				Columns: []common.ColumnData{{Name: []byte("c"), Value: []byte{}}},
			},
		},
		{
			name: "Nil and empty projection values",
			msg: common.Message{
				MsgType: common.MsgTGetColumnValues,
				Ok:      true,
				Values:  [][]byte{nil, []byte{}, []byte("v")},
			},
		},
		{
			name: "Ok response with no payload",
			msg:  common.Message{MsgType: common.MsgTExists, Ok: true},
		},
		{
			name: "Negative timestamp",
			msg: common.Message{
				MsgType: common.MsgTPutColumns,
				Table:   []byte("t"),
				Key:     []byte("k"),
				Columns: []common.ColumnData{{Name: []byte("c"), Value: []byte("v"), Timestamp: -1}},
			},
		},
		{
			name: "Empty meta slice but not nil",
			msg:  common.Message{MsgType: common.MsgTStats, Meta: []byte{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Serialize
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Deserialize
			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if result.MsgType != tc.msg.MsgType {
				t.Errorf("MsgType mismatch: expected %v, got %v", tc.msg.MsgType, result.MsgType)
			}
			if result.Ok != tc.msg.Ok {
				t.Errorf("Ok mismatch: expected %v, got %v", tc.msg.Ok, result.Ok)
			}

			// nil / non-nil distinction on the table field
			if (tc.msg.Table == nil) != (result.Table == nil) {
				t.Errorf("Table nil/non-nil mismatch: expected %v, got %v", tc.msg.Table, result.Table)
			}

			// Column values keep the nil / empty distinction
			if len(result.Columns) != len(tc.msg.Columns) {
				t.Fatalf("Columns length mismatch: expected %d, got %d", len(tc.msg.Columns), len(result.Columns))
			}
			for i, c := range tc.msg.Columns {
				got := result.Columns[i]
				if (c.Value == nil) != (got.Value == nil) {
					t.Errorf("Column %d value nil/non-nil mismatch: expected %v, got %v", i, c.Value, got.Value)
				}
				if string(c.Value) != string(got.Value) {
					t.Errorf("Column %d value mismatch: expected %q, got %q", i, c.Value, got.Value)
				}
				if c.Timestamp != got.Timestamp {
					t.Errorf("Column %d timestamp mismatch: expected %d, got %d", i, c.Timestamp, got.Timestamp)
				}
			}

			// Same for the Values projection
			if len(result.Values) != len(tc.msg.Values) {
				t.Fatalf("Values length mismatch: expected %d, got %d", len(tc.msg.Values), len(result.Values))
			}
			for i, v := range tc.msg.Values {
				got := result.Values[i]
				if (v == nil) != (got == nil) {
					t.Errorf("Value %d nil/non-nil mismatch: expected %v, got %v", i, v, got)
				}
				if string(v) != string(got) {
					t.Errorf("Value %d mismatch: expected %q, got %q", i, v, got)
				}
			}

			// Meta keeps nil / empty too
			if (tc.msg.Meta == nil) != (result.Meta == nil) {
				t.Errorf("Meta nil/non-nil mismatch: expected %v, got %v", tc.msg.Meta, result.Meta)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type plus one flag byte only
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name: "Invalid length for keyspace",
			// Claims keyspace length 5 but only 3 bytes provided
			data:        []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'},
			expectError: true,
		},
		{
			name: "Truncated txn id",
			// hasTxnID flag set but no 8 byte id follows
			data:        []byte{1, 0, 4},
			expectError: true,
		},
		{
			name: "Truncated key count",
			// hasKeys flag set but no count follows
			data:        []byte{1, 0, 16},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
