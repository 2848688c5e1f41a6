package engine

import (
	"bytes"
	"sort"

	"github.com/tessera-db/tessera/lib/datum"
)

// linearScanSlack is the per-key early-termination heuristic: when the
// column budget is exceeded but the scan is within this many columns of the
// limit, a linear scan to the next key is cheaper than a seek.
const linearScanSlack = 50

// --------------------------------------------------------------------------
// Column Predicates
// --------------------------------------------------------------------------

// smallListMax is the column-list size up to which membership is tested by
// linear comparison instead of a hash set.
const smallListMax = 5

// colPredicate is a compiled column selector.
type colPredicate struct {
	all     bool
	list    [][]byte            // small explicit list
	set     map[string]struct{} // large explicit list
	ranged  bool
	first   []byte // nil = open
	upTo    []byte // nil = open
	reverse bool
}

// compilePredicate compiles a ColumnRange once per query.
func compilePredicate(cr ColumnRange) *colPredicate {
	switch cr.Kind {
	case ColumnListKind:
		if len(cr.Columns) < smallListMax {
			return &colPredicate{list: cr.Columns}
		}
		set := make(map[string]struct{}, len(cr.Columns))
		for _, name := range cr.Columns {
			set[string(name)] = struct{}{}
		}
		return &colPredicate{set: set}
	case ContinuousColumnsKind:
		return &colPredicate{ranged: true, first: cr.First, upTo: cr.UpTo, reverse: cr.Reverse}
	default:
		return &colPredicate{all: true}
	}
}

// matches reports whether the column name is selected.
func (p *colPredicate) matches(name []byte) bool {
	switch {
	case p.all:
		return true
	case p.list != nil:
		for _, want := range p.list {
			if bytes.Equal(want, name) {
				return true
			}
		}
		return false
	case p.set != nil:
		_, ok := p.set[string(name)]
		return ok
	default:
		if p.first != nil && bytes.Compare(name, p.first) < 0 {
			return false
		}
		if p.upTo != nil && bytes.Compare(name, p.upTo) >= 0 {
			return false
		}
		return true
	}
}

// --------------------------------------------------------------------------
// GetSlice
// --------------------------------------------------------------------------

// GetSlice returns up to maxKeys rows of the selected key range, each with
// up to maxColumns selected columns, merged with the transaction's
// overlays. Columns are in ascending name order (descending for a reversed
// column range). When decodeTs is false, timestamps are zeroed in the
// result.
func (t *Txn) GetSlice(table []byte, keys KeyRange, columns ColumnRange, maxKeys, maxColumns int, decodeTs bool) (Slice, error) {
	if t.st.finished {
		return Slice{}, ErrTxnFinished
	}
	if maxKeys <= 0 {
		maxKeys = int(^uint(0) >> 1)
	}
	if maxColumns <= 0 {
		maxColumns = int(^uint(0) >> 1)
	}
	pred := compilePredicate(columns)

	var slice Slice
	var err error
	if keys.Discrete() {
		slice, err = t.sliceDiscrete(table, keys.Keys, pred, maxKeys, maxColumns)
	} else if pred.reverse {
		slice, err = t.sliceContinuousReverse(table, keys, pred, maxKeys, maxColumns)
	} else {
		slice, err = t.sliceContinuous(table, keys, pred, maxKeys, maxColumns)
	}
	if err != nil {
		return Slice{}, err
	}
	if !decodeTs {
		for i := range slice.Keys {
			for j := range slice.Keys[i].Columns {
				slice.Keys[i].Columns[j].TsMicros = 0
			}
		}
	}
	return slice, nil
}

// rowColumns materializes the visible, predicate-selected columns of one
// row: store state filtered by tombstones, merged with pending writes.
func (t *Txn) rowColumns(table, key []byte, pred *colPredicate) ([]Column, error) {
	st := t.st
	tbl, row := string(table), string(key)

	var stored []Column
	err := t.scanRow(table, key, func(col []byte, ts int64, value []byte) bool {
		if !pred.matches(col) || st.colDeleted(tbl, row, string(col)) {
			return true
		}
		stored = append(stored, Column{
			Name:     append([]byte(nil), col...),
			Value:    append([]byte(nil), value...),
			TsMicros: ts,
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	var overlay []Column
	if pending := st.pendingCols(tbl, row); pending != nil {
		pending.Scan(func(c Column) bool {
			if pred.matches(c.Name) {
				overlay = append(overlay, c)
			}
			return true
		})
	}
	return mergeColumnSlices(stored, overlay), nil
}

// mergeColumnSlices merges two ascending column slices, overlay winning
// ties.
func mergeColumnSlices(stored, overlay []Column) []Column {
	if len(overlay) == 0 {
		return stored
	}
	merged := make([]Column, 0, len(stored)+len(overlay))
	i := 0
	for _, p := range overlay {
		for i < len(stored) && bytes.Compare(stored[i].Name, p.Name) < 0 {
			merged = append(merged, stored[i])
			i++
		}
		if i < len(stored) && bytes.Equal(stored[i].Name, p.Name) {
			i++
		}
		merged = append(merged, p)
	}
	return append(merged, stored[i:]...)
}

// trimColumns applies the per-key column budget. For reversed ranges the
// budget keeps the highest-named columns and the result is emitted in
// descending order.
func trimColumns(cols []Column, maxColumns int, reverse bool) []Column {
	if reverse {
		if len(cols) > maxColumns {
			cols = cols[len(cols)-maxColumns:]
		}
		for i, j := 0, len(cols)-1; i < j; i, j = i+1, j-1 {
			cols[i], cols[j] = cols[j], cols[i]
		}
		return cols
	}
	if len(cols) > maxColumns {
		cols = cols[:maxColumns]
	}
	return cols
}

// sliceDiscrete scans each requested key independently.
func (t *Txn) sliceDiscrete(table []byte, keys [][]byte, pred *colPredicate, maxKeys, maxColumns int) (Slice, error) {
	st := t.st
	tbl := string(table)

	var out Slice
	for _, key := range keys {
		if len(out.Keys) >= maxKeys {
			break
		}
		if st.keyDeleted(tbl, string(key)) {
			continue
		}
		cols, err := t.rowColumns(table, key, pred)
		if err != nil {
			return Slice{}, err
		}
		cols = trimColumns(cols, maxColumns, pred.reverse)
		if len(cols) == 0 {
			continue
		}
		kd := KeyData{
			Key:        append([]byte(nil), key...),
			LastColumn: cols[len(cols)-1].Name,
			Columns:    cols,
		}
		out.Keys = append(out.Keys, kd)
		out.LastKey = kd.Key
	}
	return out, nil
}

// overlayRowsInRange returns the transaction's added row keys of a table
// inside [first, upTo), ascending, skipping rows also marked fully deleted.
func (st *txnState) overlayRowsInRange(tbl string, first, upTo []byte) []string {
	ak, ok := st.addedKeys[tbl]
	if !ok {
		return nil
	}
	var rows []string
	iter := func(row string) bool {
		if upTo != nil && row >= string(upTo) {
			return false
		}
		if !st.keyDeleted(tbl, row) {
			rows = append(rows, row)
		}
		return true
	}
	if first != nil {
		ak.Ascend(string(first), iter)
	} else {
		ak.Scan(iter)
	}
	return rows
}

// sliceContinuous streams one store scan across the key range and merges
// the overlays in key order.
func (t *Txn) sliceContinuous(table []byte, keys KeyRange, pred *colPredicate, maxKeys, maxColumns int) (Slice, error) {
	st := t.st
	tbl := string(table)
	overlayRows := st.overlayRowsInRange(tbl, keys.First, keys.UpTo)
	oi := 0

	var out Slice

	// emitOverlayBefore flushes overlay-only rows sorting below boundary
	// (or all remaining when boundary is nil). Returns false once the key
	// budget is exhausted.
	emitOverlayBefore := func(boundary []byte) (bool, error) {
		for oi < len(overlayRows) {
			if len(out.Keys) >= maxKeys {
				return false, nil
			}
			row := overlayRows[oi]
			if boundary != nil && row >= string(boundary) {
				return true, nil
			}
			oi++
			cols, err := t.rowColumns(table, []byte(row), pred)
			if err != nil {
				return false, err
			}
			cols = trimColumns(cols, maxColumns, pred.reverse)
			if len(cols) == 0 {
				continue
			}
			kd := KeyData{Key: []byte(row), LastColumn: cols[len(cols)-1].Name, Columns: cols}
			out.Keys = append(out.Keys, kd)
			out.LastKey = kd.Key
			if len(out.Keys) >= maxKeys {
				return false, nil
			}
		}
		return true, nil
	}

	var (
		curKey   []byte
		curCols  []Column
		observed int
	)

	// finishRow merges the current row with its overlay columns and
	// appends it. Returns false once the key budget is exhausted.
	finishRow := func() (bool, error) {
		if curKey == nil {
			return true, nil
		}
		row := curKey
		curKey = nil
		cols := curCols
		curCols = nil
		observed = 0

		// Overlay rows below this one come first.
		ok, err := emitOverlayBefore(row)
		if err != nil || !ok {
			return ok, err
		}
		// Merge pending columns of the row itself; the overlay cursor
		// skips it so it is not emitted twice.
		if oi < len(overlayRows) && overlayRows[oi] == string(row) {
			oi++
		}
		var overlay []Column
		if pending := st.pendingCols(tbl, string(row)); pending != nil {
			pending.Scan(func(c Column) bool {
				if pred.matches(c.Name) {
					overlay = append(overlay, c)
				}
				return true
			})
		}
		cols = mergeColumnSlices(cols, overlay)
		cols = trimColumns(cols, maxColumns, pred.reverse)
		if len(cols) == 0 {
			return true, nil
		}
		kd := KeyData{Key: row, LastColumn: cols[len(cols)-1].Name, Columns: cols}
		out.Keys = append(out.Keys, kd)
		out.LastKey = kd.Key
		return len(out.Keys) < maxKeys, nil
	}

	err := t.foldOverData(table, keys.First, keys.UpTo, nil, func(k *datum.Key, value []byte) (FoldOp, error) {
		if curKey != nil && !bytes.Equal(curKey, k.Row) {
			ok, err := finishRow()
			if err != nil {
				return FoldFinish, err
			}
			if !ok {
				return FoldFinish, nil
			}
		}
		if curKey == nil {
			if st.keyDeleted(tbl, string(k.Row)) {
				return FoldSkipKey, nil
			}
			curKey = append([]byte(nil), k.Row...)
			curCols = nil
			observed = 0
		}
		observed++

		if len(curCols) >= maxColumns {
			// Column budget reached: keep scanning linearly while close
			// to the limit, otherwise seek past the row's remainder.
			if observed <= maxColumns+linearScanSlack {
				return FoldContinue, nil
			}
			return FoldSkipKey, nil
		}
		if !pred.matches(k.Column) || st.colDeleted(tbl, string(k.Row), string(k.Column)) {
			return FoldContinue, nil
		}
		curCols = append(curCols, Column{
			Name:     append([]byte(nil), k.Column...),
			Value:    append([]byte(nil), value...),
			TsMicros: k.TsMicros,
		})
		return FoldContinue, nil
	})
	if err != nil {
		return Slice{}, err
	}

	ok, err := finishRow()
	if err != nil {
		return Slice{}, err
	}
	if ok {
		if _, err := emitOverlayBefore(nil); err != nil {
			return Slice{}, err
		}
	}
	return out, nil
}

// sliceContinuousReverse handles reversed column ranges over a continuous
// key range: the rows are enumerated with a cheap key-only scan, then each
// row's columns are materialized and trimmed from the top.
func (t *Txn) sliceContinuousReverse(table []byte, keys KeyRange, pred *colPredicate, maxKeys, maxColumns int) (Slice, error) {
	rows, _, err := t.collectKeys(table, keys, 0)
	if err != nil {
		return Slice{}, err
	}

	var out Slice
	for _, row := range rows {
		if len(out.Keys) >= maxKeys {
			break
		}
		cols, err := t.rowColumns(table, row, pred)
		if err != nil {
			return Slice{}, err
		}
		cols = trimColumns(cols, maxColumns, true)
		if len(cols) == 0 {
			continue
		}
		kd := KeyData{Key: row, LastColumn: cols[len(cols)-1].Name, Columns: cols}
		out.Keys = append(out.Keys, kd)
		out.LastKey = kd.Key
	}
	return out, nil
}

// --------------------------------------------------------------------------
// GetSliceValues
// --------------------------------------------------------------------------

// KeyValues is one row of a GetSliceValues result: the values aligned with
// the requested column list, nil for absent columns.
type KeyValues struct {
	Key    []byte
	Values [][]byte
}

// GetSliceValues projects a fixed column list over the selected rows.
func (t *Txn) GetSliceValues(table []byte, keys KeyRange, columns [][]byte, maxKeys int) ([]byte, []KeyValues, error) {
	slice, err := t.GetSlice(table, keys, ColumnList(columns...), maxKeys, len(columns), false)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]KeyValues, len(slice.Keys))
	for i, kd := range slice.Keys {
		values := make([][]byte, len(columns))
		for j, want := range columns {
			for _, col := range kd.Columns {
				if bytes.Equal(col.Name, want) {
					values[j] = col.Value
					break
				}
			}
		}
		rows[i] = KeyValues{Key: kd.Key, Values: values}
	}
	return slice.LastKey, rows, nil
}

// --------------------------------------------------------------------------
// CountKeys
// --------------------------------------------------------------------------

// collectKeys enumerates the visible row keys of a range in ascending
// order (all of them when maxKeys ≤ 0) and also returns the count.
func (t *Txn) collectKeys(table []byte, keys KeyRange, maxKeys int) ([][]byte, int, error) {
	st := t.st
	tbl := string(table)
	if maxKeys <= 0 {
		maxKeys = int(^uint(0) >> 1)
	}

	if keys.Discrete() {
		var rows [][]byte
		for _, key := range keys.Keys {
			if len(rows) >= maxKeys {
				break
			}
			ok, err := t.ExistsKey(table, key)
			if err != nil {
				return nil, 0, err
			}
			if ok {
				rows = append(rows, append([]byte(nil), key...))
			}
		}
		return rows, len(rows), nil
	}

	overlayRows := st.overlayRowsInRange(tbl, keys.First, keys.UpTo)
	oi := 0
	var rows [][]byte

	appendRow := func(row []byte) bool {
		rows = append(rows, row)
		return len(rows) < maxKeys
	}

	err := t.foldOverData(table, keys.First, keys.UpTo, nil, func(k *datum.Key, _ []byte) (FoldOp, error) {
		row := string(k.Row)
		if st.colDeleted(tbl, row, string(k.Column)) {
			// This column is hidden; the row may still be visible through
			// another column.
			return FoldContinue, nil
		}
		for oi < len(overlayRows) && overlayRows[oi] < row {
			if !appendRow([]byte(overlayRows[oi])) {
				return FoldFinish, nil
			}
			oi++
		}
		if oi < len(overlayRows) && overlayRows[oi] == row {
			oi++
		}
		if st.keyDeleted(tbl, row) {
			return FoldSkipKey, nil
		}
		if !appendRow(append([]byte(nil), k.Row...)) {
			return FoldFinish, nil
		}
		return FoldSkipKey, nil
	})
	if err != nil {
		return nil, 0, err
	}
	for oi < len(overlayRows) && len(rows) < maxKeys {
		rows = append(rows, []byte(overlayRows[oi]))
		oi++
	}
	return rows, len(rows), nil
}

// CountKeys counts the distinct visible row keys of a range without
// materializing columns.
func (t *Txn) CountKeys(table []byte, keys KeyRange) (int, error) {
	if t.st.finished {
		return 0, ErrTxnFinished
	}
	_, n, err := t.collectKeys(table, keys, 0)
	return n, err
}

// --------------------------------------------------------------------------
// ListTables
// --------------------------------------------------------------------------

// ListTables returns the tables of the keyspace in ascending byte order:
// every table with at least one committed datum, plus tables that only
// exist in this transaction's pending writes.
func (t *Txn) ListTables() ([][]byte, error) {
	if t.st.finished {
		return nil, ErrTxnFinished
	}
	st := t.st
	ks := st.ks

	lower := datum.KeyspacePrefix(nil, ks.id)
	upper := datum.KeyspaceEnd(nil, ks.id)
	it, release, err := t.acquireIter(lower, upper)
	if err != nil {
		return nil, err
	}
	defer release()

	seen := make(map[string]struct{})
	var tables [][]byte

	// Walk table by table: decode the table of the first datum found, then
	// seek past the whole table.
	for ok := it.SeekGE(lower); ok; {
		var k datum.Key
		if _, err := k.Decode(it.Key(), nil); err != nil {
			return nil, err
		}
		tables = append(tables, append([]byte(nil), k.Table...))
		seen[string(k.Table)] = struct{}{}
		ok = it.SeekGE(datum.TableSuccessor(nil, ks.id, k.Table))
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	for tbl, ak := range st.addedKeys {
		if _, dup := seen[tbl]; !dup && ak.Len() > 0 {
			tables = append(tables, []byte(tbl))
		}
	}
	sort.Slice(tables, func(i, j int) bool { return bytes.Compare(tables[i], tables[j]) < 0 })
	return tables, nil
}
