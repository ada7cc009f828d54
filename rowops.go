package ravendb

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/PixeeSandbox/ravendb/indexes"
	"github.com/PixeeSandbox/ravendb/ravendb_errors"
	"github.com/PixeeSandbox/ravendb/rows"
	"github.com/cockroachdb/pebble"
)

// Insert writes a new row. The primary key is derived from the builder
// before anything is committed; a row under that key already existing is an
// error.
func (t *Table) Insert(b *rows.Builder) error {
	return t.write(b, false)
}

// Put writes a row, replacing an existing one under the same primary key.
// Index entries of the replaced row are removed in the same batch.
func (t *Table) Put(b *rows.Builder) error {
	return t.write(b, true)
}

func (t *Table) write(b *rows.Builder, replace bool) error {
	pk, err := t.sch.Primary().KeyFromBuilder(t.ar, b)
	if err != nil {
		return err
	}
	defer pk.Release()
	okey := rowKey(pk.Bytes())

	oldRow, err := t.readRow(okey)
	if err != nil {
		return err
	}
	if oldRow != nil && !replace {
		return fmt.Errorf("%w: %x", ravendb_errors.ErrRowExists, pk.Bytes())
	}
	var oldView *rows.View
	if oldRow != nil {
		if oldView, err = rows.NewView(oldRow); err != nil {
			return err
		}
	}

	row := b.Seal()
	batch := t.db.NewBatch()
	defer batch.Close()

	for i, def := range t.sch.Secondary() {
		ord := uint32(i + 1)
		if oldView != nil {
			old, err := def.KeyFromView(t.ar, oldView)
			if err != nil {
				return err
			}
			err = batch.Delete(entryKey(def, ord, old.Bytes()), nil)
			old.Release()
			if err != nil {
				return err
			}
		}
		key, err := def.KeyFromBuilder(t.ar, b)
		if err != nil {
			return err
		}
		err = batch.Set(entryKey(def, ord, key.Bytes()), pk.Bytes(), nil)
		key.Release()
		if err != nil {
			return err
		}
	}
	if err = batch.Set(okey, row, nil); err != nil {
		return err
	}
	if err = batch.Commit(t.writeOptions()); err != nil {
		return err
	}

	t.rowCache.Add(string(pk.Bytes()), row)
	t.notifyResized(len(oldRow), len(row))
	if oldRow == nil {
		RowWrites.WithLabelValues("insert").Inc()
	} else {
		RowWrites.WithLabelValues("replace").Inc()
	}
	return nil
}

// Delete removes a row and all of its index entries in one batch. Deleting
// an absent row is a no-op.
func (t *Table) Delete(pk []byte) error {
	okey := rowKey(pk)
	oldRow, err := t.readRow(okey)
	if err != nil || oldRow == nil {
		return err
	}
	oldView, err := rows.NewView(oldRow)
	if err != nil {
		return err
	}

	batch := t.db.NewBatch()
	defer batch.Close()
	for i, def := range t.sch.Secondary() {
		key, err := def.KeyFromView(t.ar, oldView)
		if err != nil {
			return err
		}
		err = batch.Delete(entryKey(def, uint32(i+1), key.Bytes()), nil)
		key.Release()
		if err != nil {
			return err
		}
	}
	if err = batch.Delete(okey, nil); err != nil {
		return err
	}
	if err = batch.Commit(t.writeOptions()); err != nil {
		return err
	}

	t.rowCache.Remove(string(pk))
	t.notifyResized(len(oldRow), 0)
	RowWrites.WithLabelValues("delete").Inc()
	return nil
}

// notifyResized is best-effort storage-size accounting for computed indexes.
func (t *Table) notifyResized(oldSize, newSize int) {
	if oldSize == newSize {
		return
	}
	for _, def := range t.sch.Secondary() {
		if cd, ok := def.(*indexes.ComputedDef); ok {
			cd.NotifyEntryResized(oldSize, newSize)
		}
	}
}

// readRow fetches a row by its storage key, copying it out of pebble-owned
// memory. Returns nil without error when the row does not exist.
func (t *Table) readRow(okey []byte) ([]byte, error) {
	val, closer, err := t.db.Get(okey)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row := bytes.Clone(val)
	_ = closer.Close()
	return row, nil
}

// Get returns a view over the row stored under the primary key, or nil when
// there is none.
func (t *Table) Get(pk []byte) (*rows.View, error) {
	if row, ok := t.rowCache.Get(string(pk)); ok {
		return rows.NewView(row)
	}
	row, err := t.readRow(rowKey(pk))
	if err != nil || row == nil {
		return nil, err
	}
	t.rowCache.Add(string(pk), row)
	return rows.NewView(row)
}

func (t *Table) secondaryOrdinal(name string) (indexes.Definition, uint32, error) {
	for i, def := range t.sch.Secondary() {
		if def.Name() == name {
			return def, uint32(i + 1), nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %q", ravendb_errors.ErrIndexUnknown, name)
}

// GetByIndex resolves an index key to the row it points at, or nil when the
// key is not indexed.
func (t *Table) GetByIndex(name string, key []byte) (*rows.View, error) {
	def, ord, err := t.secondaryOrdinal(name)
	if err != nil {
		return nil, err
	}
	pk, closer, err := t.db.Get(entryKey(def, ord, key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pkCopy := bytes.Clone(pk)
	_ = closer.Close()
	return t.Get(pkCopy)
}

// GetByFixedKey is GetByIndex for fixed-size indexes, taking the numeric key
// directly.
func (t *Table) GetByFixedKey(name string, key uint64) (*rows.View, error) {
	return t.GetByIndex(name, indexes.EncodeFixedKey(key))
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
func prefixUpperBound(prefix []byte) []byte {
	ub := bytes.Clone(prefix)
	for i := len(ub) - 1; i >= 0; i-- {
		if ub[i] < 0xff {
			ub[i]++
			return ub[:i+1]
		}
	}
	return nil
}

// SeekIndex iterates rows whose index key starts with prefix, in key order.
// The yielded key slice is only valid during the yield; copy it to keep it.
// Iteration errors are logged, not returned; a partial scan yields what it
// saw.
func (t *Table) SeekIndex(name string, prefix []byte) (iter.Seq2[[]byte, *rows.View], error) {
	def, ord, err := t.secondaryOrdinal(name)
	if err != nil {
		return nil, err
	}
	lower := entryKey(def, ord, prefix)
	upper := prefixUpperBound(lower)
	return func(yield func(key []byte, v *rows.View) bool) {
		it, err := t.db.NewIter(&pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upper,
		})
		if err != nil {
			t.log.Error("index iterator failed", "index", name, "err", err)
			return
		}
		defer it.Close()
		for valid := it.First(); valid; valid = it.Next() {
			v, err := t.Get(bytes.Clone(it.Value()))
			if err != nil {
				t.log.Error("index entry points at unreadable row", "index", name, "err", err)
				return
			}
			if v == nil { // entry outlived its row
				continue
			}
			if !yield(it.Key()[len(lower)-len(prefix):], v) {
				return
			}
		}
	}, nil
}
