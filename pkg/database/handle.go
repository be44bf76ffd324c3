package database

import (
	"github.com/cuemby/ppdb/pkg/metrics"
	"github.com/cuemby/ppdb/pkg/mvcc"
	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/storage"
)

// Handle wraps pkg/storage.Handle, recording the per-database statistics
// every operation maintains (reads, writes, cache-hits/misses, bytes
// read/written, conflicts). There is no real cache in this engine
// (cache_size is reserved and currently informational only), so
// cache-hit/miss here simply mirrors found/not-found on Get — the closest
// observable stand-in without inventing a cache layer.
type Handle struct {
	h  *storage.Handle
	db *DB
}

// Put writes key/value within the bound transaction.
func (h *Handle) Put(key, value []byte) error {
	timer := metrics.NewTimer()
	err := h.h.Put(key, value)
	timer.ObserveDuration(metrics.PutDuration)
	switch {
	case err == nil:
		h.db.writes.Add(1)
		h.db.bytesWritten.Add(uint64(len(key) + len(value)))
	case ppdberr.KindOf(err) == ppdberr.Conflict:
		h.db.conflicts.Add(1)
	}
	return err
}

// Get reads key as visible to the bound transaction.
func (h *Handle) Get(key []byte) ([]byte, bool, error) {
	timer := metrics.NewTimer()
	value, found, err := h.h.Get(key)
	timer.ObserveDuration(metrics.GetDuration)
	if err == nil {
		h.db.reads.Add(1)
		h.db.bytesRead.Add(uint64(len(key)))
		if found {
			h.db.cacheHits.Add(1)
			h.db.bytesRead.Add(uint64(len(value)))
		} else {
			h.db.cacheMisses.Add(1)
		}
	}
	return value, found, err
}

// Delete stages a tombstone for key within the bound transaction.
func (h *Handle) Delete(key []byte) error {
	err := h.h.Delete(key)
	switch {
	case err == nil:
		h.db.writes.Add(1)
	case ppdberr.KindOf(err) == ppdberr.Conflict:
		h.db.conflicts.Add(1)
	}
	return err
}

// Scan returns a cursor over the table.
func (h *Handle) Scan() *mvcc.Cursor {
	return h.h.Scan()
}
