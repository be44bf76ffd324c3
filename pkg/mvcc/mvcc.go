package mvcc

import (
	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/skiplist"
	"github.com/cuemby/ppdb/pkg/types"
)

// Table binds a single skiplist index to MVCC version chains. One Table
// backs one pkg/storage named table.
type Table struct {
	index *skiplist.Skiplist
}

// NewTable creates an empty MVCC-versioned table.
func NewTable() *Table {
	return &Table{index: skiplist.New()}
}

// Record is a version handle returned to callers (pkg/txn) so it can be
// tracked in a transaction's write set and published or aborted at
// commit/abort time.
type Record struct {
	v *version
}

// Put installs a new version for key, created by writer at isolation level
// iso with snapshot begin timestamp beginTS.
// value and tombstone are mutually exclusive in meaning: tombstone=true
// represents a delete.
func (t *Table) Put(writer types.TxnID, iso types.IsolationLevel, beginTS types.Timestamp, key, value []byte, tombstone bool) (*Record, error) {
	if len(key) == 0 {
		return nil, ppdberr.Newf(ppdberr.InvalidArgument, "empty key")
	}
	if !tombstone && len(value) == 0 {
		return nil, ppdberr.Newf(ppdberr.InvalidArgument, "empty value not permitted for a user put")
	}

	for {
		node, found := t.index.Find(key)
		if !found {
			created, err := t.createWithChain(key, writer, value, tombstone)
			if err == errLostRace {
				continue
			}
			if err != nil {
				return nil, err
			}
			return created, nil
		}

		chain := node.Value().(*Chain)
		head := chain.loadHead()
		if err := checkConflict(head, writer, iso, beginTS); err != nil {
			node.Release()
			return nil, err
		}

		nv := newVersion(writer, value, tombstone, head)
		if chain.casHead(head, nv) {
			node.Release()
			return &Record{v: nv}, nil
		}
		node.Release()
		// Lost the race to another writer; retry per step 3's
		// conflict policy (re-observe and re-check).
	}
}

var errLostRace = ppdberr.New(ppdberr.Busy)

// createWithChain atomically creates the skiplist node and its first
// version in one InsertOrReplace call, so a concurrent creator of the same
// key can never observe a node with no chain.
func (t *Table) createWithChain(key []byte, writer types.TxnID, value []byte, tombstone bool) (*Record, error) {
	var installed *version
	_, err := t.index.InsertOrReplace(key, func(old any) (any, error) {
		if old != nil {
			return nil, errLostRace
		}
		installed = newVersion(writer, value, tombstone, nil)
		return newChain(installed), nil
	})
	if err != nil {
		return nil, err
	}
	return &Record{v: installed}, nil
}

// checkConflict implements's write–write conflict rule.
func checkConflict(head *version, writer types.TxnID, iso types.IsolationLevel, beginTS types.Timestamp) error {
	if head == nil {
		return nil
	}
	if head.Status() == statusInProgress && head.creator != writer {
		return ppdberr.Newf(ppdberr.Conflict, "key has an uncommitted write from another transaction")
	}
	if iso == types.RepeatableRead || iso == types.Serializable {
		if head.Status() == statusCommitted && head.Timestamp() > beginTS {
			return ppdberr.Newf(ppdberr.Conflict, "key was committed after this transaction's snapshot")
		}
	}
	return nil
}

// Get resolves the version of key visible to a reader at the given
// isolation level and snapshot. A visible
// tombstone is reported as not found.
func (t *Table) Get(reader types.TxnID, iso types.IsolationLevel, snap types.Snapshot, key []byte) ([]byte, bool, error) {
	value, _, found, err := t.resolve(reader, iso, snap, key)
	return value, found, err
}

// Resolve is Get's counterpart for callers that need to re-validate the
// read later (pkg/txn's Serializable commit validation): it returns the
// same value Get would, plus the Record identifying exactly which version
// was read, so ValidateRead can detect whether a different version becomes
// visible by commit time.
func (t *Table) Resolve(reader types.TxnID, iso types.IsolationLevel, snap types.Snapshot, key []byte) ([]byte, *Record, bool, error) {
	return t.resolve(reader, iso, snap, key)
}

func (t *Table) resolve(reader types.TxnID, iso types.IsolationLevel, snap types.Snapshot, key []byte) ([]byte, *Record, bool, error) {
	if len(key) == 0 {
		return nil, nil, false, ppdberr.Newf(ppdberr.InvalidArgument, "empty key")
	}
	node, found := t.index.Find(key)
	if !found {
		return nil, nil, false, nil
	}
	defer node.Release()

	chain := node.Value().(*Chain)
	v := visible(chain.loadHead(), reader, iso, snap)
	if v == nil || v.tombstone {
		return nil, nil, false, nil
	}
	out := make([]byte, len(v.value))
	copy(out, v.value)
	return out, &Record{v: v}, true, nil
}

// Delete installs a tombstone version for key: a put with
// tombstone=true.
func (t *Table) Delete(writer types.TxnID, iso types.IsolationLevel, beginTS types.Timestamp, key []byte) (*Record, error) {
	return t.Put(writer, iso, beginTS, key, nil, true)
}

// visible walks a version chain head-to-tail and returns the first version
// visible to reader under the given isolation level and snapshot, or nil.
func visible(head *version, reader types.TxnID, iso types.IsolationLevel, snap types.Snapshot) *version {
	for v := head; v != nil; v = v.prev {
		if v.Status() == statusAborted {
			continue
		}
		if v.creator == reader {
			// Read-your-own-writes: a transaction always sees its own
			// writes, committed or still in progress.
			return v
		}
		switch iso {
		case types.ReadUncommitted:
			return v
		case types.ReadCommitted:
			if v.Status() == statusCommitted {
				return v
			}
		case types.RepeatableRead, types.Serializable:
			if v.Status() == statusCommitted && v.Timestamp() <= snap.CommitTS && snap.Sees(v.creator) {
				return v
			}
		}
	}
	return nil
}

// Publish flips a record's version from in-progress to committed with the
// assigned commit timestamp.
func (r *Record) Publish(ts types.Timestamp) { r.v.publish(ts) }

// Abort flips a record's version to aborted.
func (r *Record) Abort() { r.v.abort() }

// ValidateRead re-resolves key's visible version using the writer's commit
// timestamp and reports whether it is still the version the writer
// originally read (false means the read is stale); this is the second step
// of Serializable commit validation.
func (t *Table) ValidateRead(writer types.TxnID, commitTS types.Timestamp, key []byte, originallyRead *Record) bool {
	node, found := t.index.Find(key)
	if !found {
		return originallyRead == nil
	}
	defer node.Release()
	chain := node.Value().(*Chain)
	snap := types.Snapshot{CommitTS: commitTS}
	v := visible(chain.loadHead(), writer, types.Serializable, snap)
	if originallyRead == nil {
		return v == nil
	}
	return v == originallyRead.v
}
