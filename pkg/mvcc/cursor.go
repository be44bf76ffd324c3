package mvcc

import (
	"github.com/cuemby/ppdb/pkg/skiplist"
	"github.com/cuemby/ppdb/pkg/types"
)

// Cursor iterates a Table's keys in order, resolving each node's version
// chain to the version visible to reader under iso/snap and silently
// skipping keys with no visible version (tombstones, or versions not yet
// committed from this snapshot's point of view) — the MVCC-aware
// counterpart of pkg/skiplist.Cursor, which only knows about Valid/Deleted
// node state, not version visibility.
type Cursor struct {
	sc     *skiplist.Cursor
	reader types.TxnID
	iso    types.IsolationLevel
	snap   types.Snapshot

	key   []byte
	value []byte
}

// NewCursor returns a cursor over t, positioned before the first key.
func (t *Table) NewCursor(reader types.TxnID, iso types.IsolationLevel, snap types.Snapshot) *Cursor {
	return &Cursor{sc: t.index.NewCursor(), reader: reader, iso: iso, snap: snap}
}

// Seek positions the cursor at the first key >= key with a version visible
// to this cursor's reader, advancing past any intervening invisible keys.
func (c *Cursor) Seek(key []byte) bool {
	if !c.sc.Seek(key) {
		c.key, c.value = nil, nil
		return false
	}
	if c.tryResolve() {
		return true
	}
	return c.Next()
}

// Next advances to the next key with a visible version.
func (c *Cursor) Next() bool {
	for c.sc.Next() {
		if c.tryResolve() {
			return true
		}
	}
	c.key, c.value = nil, nil
	return false
}

// Prev moves to the previous key with a visible version.
func (c *Cursor) Prev() bool {
	for c.sc.Prev() {
		if c.tryResolve() {
			return true
		}
	}
	c.key, c.value = nil, nil
	return false
}

func (c *Cursor) tryResolve() bool {
	chain := c.sc.Value().(*Chain)
	v := visible(chain.loadHead(), c.reader, c.iso, c.snap)
	if v == nil || v.tombstone {
		return false
	}
	c.key = c.sc.Key()
	c.value = v.value
	return true
}

// Valid reports whether the cursor is positioned on a visible key.
func (c *Cursor) Valid() bool { return c.key != nil }

// Key returns the key at the cursor's current position.
func (c *Cursor) Key() []byte { return c.key }

// Value returns the value at the cursor's current position.
func (c *Cursor) Value() []byte { return c.value }

// Close releases the cursor's underlying skiplist reference.
func (c *Cursor) Close() { c.sc.Close() }
