package engine

import (
	"bytes"

	"github.com/tidwall/btree"

	"github.com/tessera-db/tessera/lib/datum"
	"github.com/tessera-db/tessera/lib/storage"
)

// --------------------------------------------------------------------------
// Overlay Lookups
// --------------------------------------------------------------------------

func (st *txnState) colDeleted(tbl, row, col string) bool {
	_, ok := st.deleted[tbl][row][col]
	return ok
}

func (st *txnState) keyDeleted(tbl, row string) bool {
	_, ok := st.deletedKeys[tbl][row]
	return ok
}

func (st *txnState) pendingCols(tbl, row string) *btree.BTreeG[Column] {
	return st.added[tbl][row]
}

// --------------------------------------------------------------------------
// Row Scan
// --------------------------------------------------------------------------

// scanRow visits the live store columns of one row in ascending name order,
// newest version each, without overlay filtering. fn returns false to stop.
func (t *Txn) scanRow(table, key []byte, fn func(col []byte, ts int64, value []byte) bool) error {
	ks := t.st.ks
	lower := datum.KeyPrefix(nil, ks.id, table, key)
	upper := datum.KeySuccessor(nil, ks.id, table, key)

	it, release, err := t.acquireIter(lower, upper)
	if err != nil {
		return err
	}
	defer release()

	var (
		k       datum.Key
		scratch []byte
		prevCol []byte
		haveCol bool
	)
	for ok := it.First(); ok; ok = it.Next() {
		scratch = scratch[:0]
		if scratch, err = k.Decode(it.Key(), scratch); err != nil {
			return err
		}
		if haveCol && bytes.Equal(prevCol, k.Column) {
			continue // older version
		}
		prevCol = append(prevCol[:0], k.Column...)
		haveCol = true
		if !fn(k.Column, k.TsMicros, it.Value()) {
			return it.Error()
		}
	}
	return it.Error()
}

// --------------------------------------------------------------------------
// Point Reads
// --------------------------------------------------------------------------

// GetColumn returns the visible value of (table, key, column): pending
// writes shadow the store, pending tombstones hide it.
func (t *Txn) GetColumn(table, key, column []byte) (Column, bool, error) {
	if t.st.finished {
		return Column{}, false, ErrTxnFinished
	}
	st := t.st
	tbl, row, col := string(table), string(key), string(column)

	if st.colDeleted(tbl, row, col) {
		return Column{}, false, nil
	}
	if pending := st.pendingCols(tbl, row); pending != nil {
		if c, ok := pending.Get(Column{Name: column}); ok {
			return c, true, nil
		}
	}

	// Newest store version under the column's prefix.
	ks := st.ks
	lower := datum.ColumnPrefix(nil, ks.id, table, key, column)
	upper := storage.PrefixEnd(lower)

	it, release, err := t.acquireIter(lower, upper)
	if err != nil {
		return Column{}, false, err
	}
	defer release()

	if !it.First() {
		return Column{}, false, it.Error()
	}
	var k datum.Key
	if _, err := k.Decode(it.Key(), nil); err != nil {
		return Column{}, false, err
	}
	return Column{
		Name:     append([]byte(nil), column...),
		Value:    append([]byte(nil), it.Value()...),
		TsMicros: k.TsMicros,
	}, true, nil
}

// GetColumnValues projects the named columns of a row: the result has one
// entry per requested name, nil for absent columns.
func (t *Txn) GetColumnValues(table, key []byte, columns [][]byte) ([][]byte, error) {
	values := make([][]byte, len(columns))
	for i, name := range columns {
		col, ok, err := t.GetColumn(table, key, name)
		if err != nil {
			return nil, err
		}
		if ok {
			values[i] = col.Value
		}
	}
	return values, nil
}

// GetColumns returns the visible columns of (table, key) in ascending name
// order, merged from the store and the transaction's overlays. maxColumns
// ≤ 0 means no limit.
func (t *Txn) GetColumns(table, key []byte, maxColumns int) ([]Column, error) {
	if t.st.finished {
		return nil, ErrTxnFinished
	}
	st := t.st
	tbl, row := string(table), string(key)

	var stored []Column
	err := t.scanRow(table, key, func(col []byte, ts int64, value []byte) bool {
		if st.colDeleted(tbl, row, string(col)) {
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

	merged := mergeColumns(stored, st.pendingCols(tbl, row))
	if maxColumns > 0 && len(merged) > maxColumns {
		merged = merged[:maxColumns]
	}
	return merged, nil
}

// ExistsKey reports whether (table, key) has at least one visible column.
func (t *Txn) ExistsKey(table, key []byte) (bool, error) {
	if t.st.finished {
		return false, ErrTxnFinished
	}
	st := t.st
	tbl, row := string(table), string(key)

	if pending := st.pendingCols(tbl, row); pending != nil && pending.Len() > 0 {
		return true, nil
	}
	if st.keyDeleted(tbl, row) {
		return false, nil
	}

	found := false
	err := t.scanRow(table, key, func(col []byte, _ int64, _ []byte) bool {
		if st.colDeleted(tbl, row, string(col)) {
			return true
		}
		found = true
		return false
	})
	return found, err
}

// --------------------------------------------------------------------------
// Overlay Merge
// --------------------------------------------------------------------------

// mergeColumns merges stored columns (ascending, tombstones already
// filtered) with a row's pending writes. Pending entries win ties.
func mergeColumns(stored []Column, pending *btree.BTreeG[Column]) []Column {
	if pending == nil || pending.Len() == 0 {
		return stored
	}
	merged := make([]Column, 0, len(stored)+pending.Len())
	i := 0
	pending.Scan(func(p Column) bool {
		for i < len(stored) && bytes.Compare(stored[i].Name, p.Name) < 0 {
			merged = append(merged, stored[i])
			i++
		}
		if i < len(stored) && bytes.Equal(stored[i].Name, p.Name) {
			i++ // shadowed by the pending write
		}
		merged = append(merged, p)
		return true
	})
	merged = append(merged, stored[i:]...)
	return merged
}
