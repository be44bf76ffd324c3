package storage

import (
	"github.com/cuemby/ppdb/pkg/mvcc"
	"github.com/cuemby/ppdb/pkg/txn"
)

// Handle binds a Table to an in-flight transaction, giving Put/Get/Delete
// and range-scan access scoped to that transaction's isolation level and
// snapshot.
type Handle struct {
	table *Table
	tx    *txn.Txn
}

// Open binds table to tx, the operation pkg/database performs once a
// transaction names a table it wants to operate on.
func Open(table *Table, tx *txn.Txn) *Handle {
	return &Handle{table: table, tx: tx}
}

// Put writes key/value within the bound transaction.
func (h *Handle) Put(key, value []byte) error {
	return h.tx.Put(h.table.name, key, value)
}

// Get reads key as visible to the bound transaction.
func (h *Handle) Get(key []byte) ([]byte, bool, error) {
	return h.tx.Get(h.table.name, key)
}

// Delete stages a tombstone for key within the bound transaction.
func (h *Handle) Delete(key []byte) error {
	return h.tx.Delete(h.table.name, key)
}

// Scan returns a cursor over the table, visibility-filtered per the bound
// transaction's isolation level and snapshot.
func (h *Handle) Scan() *mvcc.Cursor {
	return h.table.mv.NewCursor(h.tx.ID(), h.tx.Isolation(), h.tx.Snapshot())
}
