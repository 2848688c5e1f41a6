package engine

// --------------------------------------------------------------------------
// Columns
// --------------------------------------------------------------------------

// AutoTimestamp requests the commit-time timestamp for a column write.
const AutoTimestamp int64 = -1

// Column is one named cell of a row.
type Column struct {
	Name  []byte
	Value []byte
	// TsMicros is the column's timestamp in microseconds since the Unix
	// epoch, or AutoTimestamp to let the commit assign it.
	TsMicros int64
}

// KeyData is one row of a slice result: the row key, the last column the
// scan considered for it, and the selected columns in ascending name order
// (descending when the column range was reversed).
type KeyData struct {
	Key        []byte
	LastColumn []byte
	Columns    []Column
}

// Slice is the result of GetSlice: the last row key touched by the scan
// (the resume point for paging) and the per-row column data.
type Slice struct {
	LastKey []byte
	Keys    []KeyData
}

// --------------------------------------------------------------------------
// Key Selection
// --------------------------------------------------------------------------

// KeyRange selects the rows of a query. When Keys is non-nil it is an
// explicit list; otherwise [First, UpTo) is a half-open range where a nil
// UpTo means "to the end of the table".
type KeyRange struct {
	Keys  [][]byte
	First []byte
	UpTo  []byte
}

// Discrete reports whether the selector is an explicit key list.
func (r KeyRange) Discrete() bool { return r.Keys != nil }

// AllKeys selects every row of a table.
func AllKeys() KeyRange { return KeyRange{} }

// DiscreteKeys selects an explicit list of rows.
func DiscreteKeys(keys ...[]byte) KeyRange {
	if keys == nil {
		keys = [][]byte{}
	}
	return KeyRange{Keys: keys}
}

// ContinuousKeys selects the half-open row range [first, upTo).
func ContinuousKeys(first, upTo []byte) KeyRange {
	return KeyRange{First: first, UpTo: upTo}
}

// --------------------------------------------------------------------------
// Column Selection
// --------------------------------------------------------------------------

// ColumnRangeKind discriminates ColumnRange.
type ColumnRangeKind uint8

const (
	// AllColumnsKind selects every column.
	AllColumnsKind ColumnRangeKind = iota
	// ColumnListKind selects an explicit list of column names.
	ColumnListKind
	// ContinuousColumnsKind selects the half-open range [First, UpTo),
	// optionally enumerated in reverse.
	ContinuousColumnsKind
)

// ColumnRange selects the columns of a query.
type ColumnRange struct {
	Kind    ColumnRangeKind
	Columns [][]byte
	First   []byte
	UpTo    []byte
	Reverse bool
}

// AllColumns selects every column of each selected row.
func AllColumns() ColumnRange { return ColumnRange{Kind: AllColumnsKind} }

// ColumnList selects an explicit set of columns.
func ColumnList(names ...[]byte) ColumnRange {
	return ColumnRange{Kind: ColumnListKind, Columns: names}
}

// ContinuousColumns selects the half-open column range [first, upTo).
func ContinuousColumns(first, upTo []byte, reverse bool) ColumnRange {
	return ColumnRange{Kind: ContinuousColumnsKind, First: first, UpTo: upTo, Reverse: reverse}
}

// --------------------------------------------------------------------------
// Isolation
// --------------------------------------------------------------------------

// Isolation selects a transaction's isolation level.
type Isolation uint8

const (
	// ReadCommitted re-reads the live store on every operation; writes
	// committed by others become visible mid-transaction.
	ReadCommitted Isolation = iota
	// RepeatableRead reads through a snapshot taken at Begin.
	RepeatableRead
)

func (i Isolation) String() string {
	switch i {
	case ReadCommitted:
		return "read-committed"
	case RepeatableRead:
		return "repeatable-read"
	default:
		return "unknown"
	}
}
