package engine

import (
	"time"

	"github.com/tessera-db/tessera/lib/backup"
	"github.com/tessera-db/tessera/lib/datum"
)

// --------------------------------------------------------------------------
// Dump
// --------------------------------------------------------------------------

// DumpChunk produces the next chunk of a keyspace dump. A nil cursor
// starts a fresh dump; the returned cursor is nil once the dump is
// complete. Running the whole dump inside one repeatable-read transaction
// yields a consistent snapshot.
func (t *Txn) DumpChunk(cursor []byte) (chunk, next []byte, err error) {
	if t.st.finished {
		return nil, nil, ErrTxnFinished
	}

	var cur *backup.Cursor
	if cursor == nil {
		tables, err := t.ListTables()
		if err != nil {
			return nil, nil, err
		}
		cur = &backup.Cursor{RemainingTables: tables}
	} else {
		if cur, err = backup.DecodeCursor(cursor); err != nil {
			return nil, nil, err
		}
	}

	w := backup.NewChunkWriter(backup.MaxChunk)
	for len(cur.RemainingTables) > 0 {
		table := cur.RemainingTables[0]
		w.BeginTable(table)

		full := false
		err := t.foldOverData(table, cur.Key, nil, cur.Column, func(k *datum.Key, value []byte) (FoldOp, error) {
			if !w.Append(k.Row, k.Column, k.TsMicros, value) {
				cur.Key = append([]byte(nil), k.Row...)
				cur.Column = append([]byte(nil), k.Column...)
				full = true
				return FoldFinish, nil
			}
			return FoldContinue, nil
		})
		if err != nil {
			return nil, nil, err
		}
		if full {
			return w.Bytes(), cur.Encode(nil), nil
		}
		cur.RemainingTables = cur.RemainingTables[1:]
		cur.Key, cur.Column = nil, nil
	}
	return w.Bytes(), nil, nil
}

// --------------------------------------------------------------------------
// Load
// --------------------------------------------------------------------------

// LoadChunk appends one dump chunk to the transaction's pending batch,
// keeping the dumped timestamps. Loaded records bypass the overlays: they
// are invisible to the transaction's own reads and become durable with the
// outermost commit.
func (t *Txn) LoadChunk(chunk []byte) error {
	if t.st.finished {
		return ErrTxnFinished
	}
	st := t.st
	if st.batch == nil {
		st.batch = st.ks.eng.store.NewBatch()
	}
	r := backup.NewChunkReader(chunk)
	for r.Next() {
		rec := r.Record()
		ts := rec.TsMicros
		if ts == AutoTimestamp {
			ts = time.Now().UnixMicro()
		}
		key := datum.AppendKey(nil, st.ks.id, rec.Table, rec.Key, rec.Column, ts)
		if err := st.batch.Put(key, rec.Value); err != nil {
			return err
		}
	}
	return r.Err()
}
