package storage

import (
	"time"

	"github.com/cuemby/ppdb/pkg/mvcc"
)

// Table is a named, ordered index: one pkg/mvcc.Table plus the bookkeeping
// a registry needs to list and manage it.
type Table struct {
	name      string
	createdAt time.Time
	mv        *mvcc.Table
}

// NewTable creates an empty named table.
func NewTable(name string) *Table {
	return &Table{name: name, createdAt: time.Now(), mv: mvcc.NewTable()}
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// CreatedAt returns when the table was created, for Stats/introspection.
func (t *Table) CreatedAt() time.Time { return t.createdAt }

// MVCC returns the underlying version-chain table, the boundary
// pkg/txn.TableRegistry crosses into pkg/mvcc.
func (t *Table) MVCC() *mvcc.Table { return t.mv }
