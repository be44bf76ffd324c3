package txn

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cuemby/ppdb/pkg/mvcc"
	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/types"
	"github.com/cuemby/ppdb/pkg/wal"
)

// tableKey identifies a (table, key) pair in a transaction's read/write
// sets.
type tableKey struct {
	table string
	key   string
}

// writeEntry is one (table, key, version) tuple recorded for commit/abort
// and WAL emission.
type writeEntry struct {
	table     string
	key       []byte
	value     []byte
	tombstone bool
	rec       *mvcc.Record
}

// Txn is one transaction: its snapshot, its accumulated write set, and the
// state machine governing what operations are still legal.
//
// A Txn is not safe for concurrent use by multiple goroutines, the same
// single-owner-goroutine contract database/sql's *Tx has.
type Txn struct {
	id       types.TxnID
	iso      types.IsolationLevel
	flags    types.TxnFlags
	snapshot types.Snapshot
	beganAt  time.Time

	mgr *Manager

	state atomic.Uint32 // types.TxnState

	mu      sync.Mutex
	writes  []writeEntry
	reads   map[tableKey]*mvcc.Record // originally-read version, for Serializable validation
	touched map[string]struct{}       // tables written to, reported by TouchedTables
}

// ID returns the transaction's id.
func (t *Txn) ID() types.TxnID { return t.id }

// State returns the transaction's current state.
func (t *Txn) State() types.TxnState { return types.TxnState(t.state.Load()) }

// Isolation returns the transaction's declared isolation level.
func (t *Txn) Isolation() types.IsolationLevel { return t.iso }

// Flags returns the transaction's behavior flags.
func (t *Txn) Flags() types.TxnFlags { return t.flags }

// effIso is the isolation level actually enforced against pkg/mvcc: the
// transaction's declared level, unless the database was opened with
// enable_mvcc=false, in which case every operation runs at ReadUncommitted
// (the single-version fast path).
func (t *Txn) effIso() types.IsolationLevel {
	if !t.mgr.enableMVCC {
		return types.ReadUncommitted
	}
	return t.iso
}

// Snapshot returns the transaction's begin-time snapshot, used by
// pkg/storage to build visibility-filtered cursors.
func (t *Txn) Snapshot() types.Snapshot { return t.snapshot }

// TouchedTables returns the names of tables this transaction wrote to, in
// no particular order.
func (t *Txn) TouchedTables() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.touched))
	for name := range t.touched {
		out = append(out, name)
	}
	return out
}

func (t *Txn) checkActive() error {
	if t.State() != types.Active {
		return ppdberr.Newf(ppdberr.InvalidState, "transaction %d is not active", t.id)
	}
	return nil
}

// Get reads key from table, resolving visibility per the transaction's
// isolation level and snapshot.
func (t *Txn) Get(table string, key []byte) ([]byte, bool, error) {
	if err := t.checkActive(); err != nil {
		return nil, false, err
	}
	tbl, ok := t.mgr.registry.Table(table)
	if !ok {
		return nil, false, ppdberr.Newf(ppdberr.NotFound, "table %q does not exist", table)
	}
	value, rec, found, err := tbl.Resolve(t.id, t.effIso(), t.snapshot, key)
	if err != nil {
		return nil, false, err
	}
	if t.iso == types.Serializable && t.mgr.enableMVCC {
		t.mu.Lock()
		t.reads[tableKey{table, string(key)}] = rec
		t.mu.Unlock()
	}
	return value, found, nil
}

// Put stages a write in table for key, retrying a lost write-write race up
// to the configured lock_timeout_ms with exponential back-off.
func (t *Txn) Put(table string, key, value []byte) error {
	return t.write(table, key, value, false)
}

// Delete stages a tombstone write: a put with tombstone=true.
func (t *Txn) Delete(table string, key []byte) error {
	return t.write(table, key, nil, true)
}

func (t *Txn) write(table string, key, value []byte, tombstone bool) error {
	if t.flags.ReadOnly {
		return ppdberr.Newf(ppdberr.InvalidArgument, "write attempted on a read-only transaction")
	}
	if err := t.checkActive(); err != nil {
		return err
	}
	tbl, ok := t.mgr.registry.Table(table)
	if !ok {
		return ppdberr.Newf(ppdberr.NotFound, "table %q does not exist", table)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = t.mgr.lockTimeout

	var rec *mvcc.Record
	opErr := backoff.Retry(func() error {
		var err error
		rec, err = tbl.Put(t.id, t.effIso(), t.snapshot.CommitTS, key, value, tombstone)
		if err != nil {
			if ppdberr.KindOf(err) == ppdberr.Conflict && !t.flags.NoWait {
				return err // retryable: another writer holds this key in progress
			}
			return backoff.Permanent(err)
		}
		return nil
	}, bo)
	if opErr != nil {
		// backoff.Retry already unwraps a Permanent error, so only a Conflict
		// that was still being retried when the deadline passed is a Timeout.
		if ppdberr.KindOf(opErr) != ppdberr.Conflict || t.flags.NoWait {
			return opErr
		}
		return ppdberr.Wrap(ppdberr.Timeout, opErr, "lock wait exceeded lock_timeout_ms on table %q key %q", table, key)
	}

	t.mu.Lock()
	t.writes = append(t.writes, writeEntry{table: table, key: key, value: value, tombstone: tombstone, rec: rec})
	if t.touched == nil {
		t.touched = make(map[string]struct{})
	}
	t.touched[table] = struct{}{}
	t.mu.Unlock()
	return nil
}

// Commit validates (Serializable re-checks every read), durably writes the
// transaction to the WAL, publishes its versions, and transitions to
// Committed.
func (t *Txn) Commit() error {
	if !t.state.CompareAndSwap(uint32(types.Active), uint32(types.Committing)) {
		return ppdberr.Newf(ppdberr.InvalidState, "transaction %d is not active", t.id)
	}
	defer t.mgr.unregister(t.id)

	t.mu.Lock()
	writes := t.writes
	t.mu.Unlock()

	commitTS := t.mgr.nextTS()

	if t.iso == types.Serializable && t.mgr.enableMVCC {
		if err := t.validateReads(commitTS); err != nil {
			t.abortWrites(writes)
			t.state.Store(uint32(types.Aborted))
			return err
		}
	}

	if t.mgr.enableLogging && len(writes) > 0 {
		if err := t.appendWAL(writes, commitTS); err != nil {
			t.abortWrites(writes)
			t.state.Store(uint32(types.Aborted))
			return err
		}
	}

	for _, w := range writes {
		w.rec.Publish(commitTS)
	}
	t.state.Store(uint32(types.Committed))
	return nil
}

// validateReads re-checks every key this transaction read against its
// originally-observed version via pkg/mvcc.Table.ValidateRead, the second
// step of Serializable commit validation.
func (t *Txn) validateReads(commitTS types.Timestamp) error {
	t.mu.Lock()
	reads := t.reads
	t.mu.Unlock()
	for tk, originallyRead := range reads {
		tbl, ok := t.mgr.registry.Table(tk.table)
		if !ok {
			continue
		}
		if !tbl.ValidateRead(t.id, commitTS, []byte(tk.key), originallyRead) {
			return ppdberr.Newf(ppdberr.Conflict, "serializable validation failed on table %q key %q", tk.table, tk.key)
		}
	}
	return nil
}

func (t *Txn) appendWAL(writes []writeEntry, commitTS types.Timestamp) error {
	// The manager lock is held across the whole burst so no other commit's
	// records can land between this write set and its CommitMarker.
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()
	for _, w := range writes {
		typ := wal.Put
		if w.tombstone {
			typ = wal.Delete
		}
		rec := &wal.Record{Type: typ, Table: w.table, Key: w.key, Value: w.value}
		if err := t.mgr.wal.Append(rec); err != nil {
			return err
		}
	}
	marker := &wal.Record{Type: wal.CommitMarker, TxnID: uint64(t.id), CommitTS: uint64(commitTS)}
	if err := t.mgr.wal.Append(marker); err != nil {
		return err
	}
	if t.flags.SyncOnCommit {
		return t.mgr.wal.Sync()
	}
	return nil
}

// Abort releases all staged versions without touching the WAL (
// "Abort": an aborted transaction's writes never become a WAL record).
func (t *Txn) Abort() error {
	if !t.state.CompareAndSwap(uint32(types.Active), uint32(types.Aborted)) &&
		!t.state.CompareAndSwap(uint32(types.Committing), uint32(types.Aborted)) {
		return nil // already terminal; Abort is idempotent
	}
	defer t.mgr.unregister(t.id)

	t.mu.Lock()
	writes := t.writes
	t.mu.Unlock()
	t.abortWrites(writes)
	return nil
}

func (t *Txn) abortWrites(writes []writeEntry) {
	for _, w := range writes {
		w.rec.Abort()
	}
}
