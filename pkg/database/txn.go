package database

import (
	"github.com/cuemby/ppdb/pkg/metrics"
	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/storage"
	"github.com/cuemby/ppdb/pkg/txn"
	"github.com/cuemby/ppdb/pkg/types"
)

// Txn wraps pkg/txn.Txn with the database handle needed to record
// statistics and to open tables scoped to this transaction.
type Txn struct {
	t  *txn.Txn
	db *DB
}

// ID returns the transaction's id.
func (tx *Txn) ID() types.TxnID { return tx.t.ID() }

// Isolation returns the transaction's declared isolation level.
func (tx *Txn) Isolation() types.IsolationLevel { return tx.t.Isolation() }

// Commit commits the transaction, recording a
// conflict if validation failed.
func (tx *Txn) Commit() error {
	timer := metrics.NewTimer()
	err := tx.t.Commit()
	timer.ObserveDuration(metrics.CommitDuration)
	if ppdberr.KindOf(err) == ppdberr.Conflict {
		tx.db.conflicts.Add(1)
	}
	return err
}

// Abort aborts the transaction.
func (tx *Txn) Abort() error { return tx.t.Abort() }

// CreateTable creates a new empty table. Requires
// a writable transaction.
func (tx *Txn) CreateTable(name string) (*Handle, error) {
	if tx.t.Flags().ReadOnly {
		return nil, ppdberr.Newf(ppdberr.InvalidArgument, "table_create requires a writable transaction")
	}
	if _, err := tx.db.registry.CreateTable(name); err != nil {
		return nil, err
	}
	return tx.Table(name)
}

// DropTable drops a table. Requires a writable
// transaction.
func (tx *Txn) DropTable(name string) error {
	if tx.t.Flags().ReadOnly {
		return ppdberr.Newf(ppdberr.InvalidArgument, "table_drop requires a writable transaction")
	}
	return tx.db.registry.DropTable(name)
}

// Table opens an existing table scoped to this transaction (
// "table_open").
func (tx *Txn) Table(name string) (*Handle, error) {
	table, ok := tx.db.registry.Lookup(name)
	if !ok {
		return nil, ppdberr.Newf(ppdberr.NotFound, "table %q does not exist", name)
	}
	return &Handle{h: storage.Open(table, tx.t), db: tx.db}, nil
}
