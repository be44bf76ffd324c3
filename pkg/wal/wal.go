package wal

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/cuemby/ppdb/pkg/log"
	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/types"
)

// WAL is the write-ahead log. A single writer owns the append position;
// concurrent producers serialize through writeMu, a short critical section
// around the append and position advance.
type WAL struct {
	dir         string
	segmentSize uint32
	syncWrite   bool

	writeMu      sync.Mutex
	cur          *segment
	segmentMaxTS map[uint64]uint64 // segment id -> highest CommitMarker commit_ts seen in it

	nextID atomic.Uint64

	segmentCount atomic.Uint64
	totalBytes   atomic.Uint64

	recoveredCommitTS types.Timestamp
}

// Open opens (or creates) the WAL directory described by cfg and performs
// crash recovery via target. target receives every materialized mutation
// in commit order; see Recover for the replay contract.
//
// the config-struct signature is the only constructor.
func Open(cfg types.WALConfig, target Target) (*WAL, error) {
	if cfg.DirPath == "" {
		return nil, ppdberr.Newf(ppdberr.InvalidArgument, "wal: DirPath is required")
	}
	if err := os.MkdirAll(cfg.DirPath, 0o755); err != nil {
		return nil, ppdberr.Wrap(ppdberr.Io, err, "create WAL dir %s", cfg.DirPath)
	}

	segmentSize := cfg.SegmentSize
	if segmentSize == 0 {
		segmentSize = 64 << 20
	}

	w := &WAL{dir: cfg.DirPath, segmentSize: segmentSize, syncWrite: cfg.SyncWrite, segmentMaxTS: make(map[uint64]uint64)}

	logger := log.WithComponent("wal")

	recoveredTS, err := Recover(cfg.DirPath, target)
	if err != nil {
		return nil, err
	}
	w.recoveredCommitTS = recoveredTS
	logger.Info().Str("dir", cfg.DirPath).Uint64("recovered_commit_ts", uint64(recoveredTS)).Msg("wal recovery complete")

	ids, err := listSegmentIDs(cfg.DirPath)
	if err != nil {
		return nil, err
	}
	w.segmentCount.Store(uint64(len(ids)))

	var nextID uint64 = 1
	if len(ids) > 0 {
		nextID = ids[len(ids)-1] + 1
		for _, id := range ids {
			if fi, statErr := os.Stat(mustSegmentPath(cfg.DirPath, id)); statErr == nil {
				w.totalBytes.Add(uint64(fi.Size()))
			}
		}
		if seg, err := reopenForAppend(cfg.DirPath, ids[len(ids)-1], segmentSize); err == nil {
			w.cur = seg
			nextID = ids[len(ids)-1] + 1
			w.nextID.Store(nextID)
			return w, nil
		}
	}
	w.nextID.Store(nextID)
	seg, err := createSegment(cfg.DirPath, nextID, segmentSize)
	if err != nil {
		return nil, err
	}
	w.cur = seg
	w.nextID.Store(nextID + 1)
	w.segmentCount.Add(1)
	w.totalBytes.Add(segmentHeaderLen)
	return w, nil
}

func mustSegmentPath(dir string, id uint64) string {
	p, _ := segmentPath(dir, id)
	return p
}

// reopenForAppend reopens the most recent segment for further appends
// (the common "process restarted, keep writing the tail segment" path).
func reopenForAppend(dir string, id uint64, segmentSize uint32) (*segment, error) {
	path, err := segmentPath(dir, id)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := uint32(fi.Size())
	if size < segmentHeaderLen {
		f.Close()
		return nil, ppdberr.New(ppdberr.Corrupted)
	}
	if _, err := f.Seek(0, 2); err != nil {
		f.Close()
		return nil, err
	}
	return &segment{id: id, path: path, f: f, cap: segmentSize, size: size - segmentHeaderLen}, nil
}

// Append writes rec to the WAL, rotating to a new segment first if rec
// would overflow the current one. If SyncWrite is
// set, the write is fsynced before Append returns.
func (w *WAL) Append(rec *Record) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	need := uint32(rec.encodedLen())
	if w.cur.size+need > w.cur.cap && w.cur.size > 0 {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	if err := w.cur.append(rec); err != nil {
		return err
	}
	w.totalBytes.Add(uint64(need))
	if rec.Type == CommitMarker && rec.CommitTS > w.segmentMaxTS[w.cur.id] {
		w.segmentMaxTS[w.cur.id] = rec.CommitTS
	}

	if w.syncWrite {
		if err := w.cur.sync(); err != nil {
			return err
		}
	}
	return nil
}

// rotateLocked creates a new segment and swaps it in, fsyncing and closing
// the previous segment's descriptor first.
func (w *WAL) rotateLocked() error {
	old := w.cur
	id := w.nextID.Add(1) - 1
	seg, err := createSegment(w.dir, id, w.segmentSize)
	if err != nil {
		return err
	}
	if err := old.close(); err != nil {
		seg.close()
		return err
	}
	w.cur = seg
	w.segmentCount.Add(1)
	w.totalBytes.Add(segmentHeaderLen)
	log.WithSegment(id).Debug().Str("dir", w.dir).Msg("wal segment rotated")
	return nil
}

// Sync flushes the current segment to disk regardless of SyncWrite.
func (w *WAL) Sync() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.cur.sync()
}

// Close flushes and closes the current segment.
func (w *WAL) Close() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.cur.close()
}

// SegmentCount and TotalBytes feed pkg/database's Stats.
func (w *WAL) SegmentCount() uint64 { return w.segmentCount.Load() }
func (w *WAL) TotalBytes() uint64   { return w.totalBytes.Load() }

// Dir returns the WAL directory.
func (w *WAL) Dir() string { return w.dir }

// RecoveredCommitTS is the highest commit timestamp observed during the
// Open-time recovery replay (zero on a fresh WAL), the value pkg/txn seeds
// its commit-timestamp counter with so a restart never reuses one.
func (w *WAL) RecoveredCommitTS() types.Timestamp { return w.recoveredCommitTS }

// SegmentMaxCommitTS reports the highest commit timestamp any CommitMarker
// appended to segment id since this WAL was opened has carried, and whether
// any such CommitMarker exists; the map is not persisted, so a segment
// written before Open reports false. Used by the archiver's ArchivabilityFunc to decide
// whether every reader's snapshot has moved past a segment's youngest
// commit.
func (w *WAL) SegmentMaxCommitTS(id uint64) (types.Timestamp, bool) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	ts, ok := w.segmentMaxTS[id]
	return types.Timestamp(ts), ok
}

// activeSegmentID returns the id of the segment currently open for
// appends, which the archiver must never move.
func (w *WAL) activeSegmentID() uint64 {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.cur.id
}
