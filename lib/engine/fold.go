package engine

import (
	"bytes"

	"github.com/tessera-db/tessera/lib/datum"
)

// --------------------------------------------------------------------------
// Fold Primitive
// --------------------------------------------------------------------------

// FoldOp is the callback verdict of foldOverData.
type FoldOp uint8

const (
	// FoldContinue proceeds to the next datum.
	FoldContinue FoldOp = iota
	// FoldSkipKey seeks directly past every remaining column of the
	// current row, which is cheaper than iterating through them.
	FoldSkipKey
	// FoldFinish stops the fold.
	FoldFinish
)

// foldFunc observes one live datum. The key's byte components and the value
// borrow the scanner's scratch space and the iterator's buffers: they are
// only valid for the duration of the call, and callers must copy what they
// keep.
type foldFunc func(k *datum.Key, value []byte) (FoldOp, error)

// foldOverData walks the live datums of a table in key order, newest
// version per column, between firstKey (inclusive, nil = table start) and
// upToKey (exclusive, nil = table end). firstColumn restricts the first
// row's scan to columns ≥ firstColumn.
//
// Only the most recent version of each (key, column) is reported; older
// versions are skipped. Transaction overlays are not consulted here: this
// is the raw committed view of the transaction's read view.
func (t *Txn) foldOverData(table, firstKey, upToKey, firstColumn []byte, fn foldFunc) error {
	if t.st.finished {
		return ErrTxnFinished
	}
	ks := t.st.ks

	var lower []byte
	switch {
	case firstKey == nil:
		lower = datum.TablePrefix(nil, ks.id, table)
	case len(firstColumn) > 0:
		lower = datum.ColumnPrefix(nil, ks.id, table, firstKey, firstColumn)
	default:
		lower = datum.KeyPrefix(nil, ks.id, table, firstKey)
	}

	var upper []byte
	if upToKey == nil {
		upper = datum.TableSuccessor(nil, ks.id, table)
	} else {
		upper = datum.KeyPrefix(nil, ks.id, table, upToKey)
	}

	it, release, err := t.acquireIter(lower, upper)
	if err != nil {
		return err
	}
	defer release()

	var (
		k       datum.Key
		scratch []byte
		prevRow []byte // last (row, column) visited, for version dedup
		prevCol []byte
		haveRow bool
	)

	for ok := it.First(); ok; {
		scratch = scratch[:0]
		scratch, err = k.Decode(it.Key(), scratch)
		if err != nil {
			return err
		}

		// Older versions of a column sort right after the newest one;
		// report only the first.
		if haveRow && bytes.Equal(prevRow, k.Row) && bytes.Equal(prevCol, k.Column) {
			ok = it.Next()
			continue
		}
		prevRow = append(prevRow[:0], k.Row...)
		prevCol = append(prevCol[:0], k.Column...)
		haveRow = true

		op, err := fn(&k, it.Value())
		if err != nil {
			return err
		}
		switch op {
		case FoldSkipKey:
			ok = it.SeekGE(datum.KeySuccessor(nil, ks.id, table, k.Row))
		case FoldFinish:
			return it.Error()
		default:
			ok = it.Next()
		}
	}
	return it.Error()
}
