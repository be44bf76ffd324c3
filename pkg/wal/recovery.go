package wal

import (
	"io"
	"os"

	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/types"
)

// Target receives materialized mutations during recovery, in commit order.
// pkg/database implements Target by replaying directly into the relevant
// pkg/mvcc.Table for each record's Table name.
type Target interface {
	ApplyPut(table string, key, value []byte, commitTS types.Timestamp) error
	ApplyDelete(table string, key []byte, commitTS types.Timestamp) error
}

// pendingRecord is one buffered mutation awaiting the next CommitMarker.
//
// The wire format has no txn-id on Put/Delete (the 12-byte header is
// type/key_size/value_size only), so association with a transaction is
// positional: pkg/txn writes a whole transaction's write set and its
// CommitMarker as one burst while holding its transaction manager's lock,
// so no other transaction's records can ever appear between them.
// That makes a single FIFO buffer, flushed on every CommitMarker, correct
// for an uninterrupted log. A crash mid-burst leaves an orphan tail with no
// following marker; see truncateOrphanTail for why that tail must be cut
// off the file, not just ignored in memory.
type pendingRecord struct {
	table  string
	delete bool
	key    []byte
	value  []byte
}

// Recover replays every segment in dir, ascending by id, into target.
// Mutations buffer in FIFO order until a CommitMarker arrives, at which
// point they materialize into target with the marker's commit timestamp
// and the buffer clears. A burst left unterminated by a crash (no marker
// ever arrives) is discarded — an implicit abort — and its bytes are
// truncated off the last segment so a later restart's fresh writes can
// never be mistaken for a continuation of it.
//
// Recovery distinguishes two failure shapes: a torn tail (short
// read of a record body) truncates mentally at the prior boundary and
// recovery continues with the next segment; a corrupted record header
// (impossible declared sizes, unknown type) stops recovery entirely —
// later segments are not processed, since they may depend on state this
// segment never finished writing.
//
// It returns the highest commit timestamp observed, so the caller can seed
// its commit-timestamp counter above any replayed value.
func Recover(dir string, target Target) (types.Timestamp, error) {
	ids, err := listSegmentIDs(dir)
	if err != nil {
		return 0, err
	}

	var pending []pendingRecord
	var maxCommitTS types.Timestamp

	for i, id := range ids {
		validEnd, fatal, err := recoverSegment(dir, id, &pending, target, &maxCommitTS)
		if err != nil {
			return 0, err
		}
		isLast := i == len(ids)-1
		if len(pending) > 0 && isLast {
			if err := truncateOrphanTail(dir, id, validEnd); err != nil {
				return 0, err
			}
			pending = nil
		}
		if fatal {
			break
		}
	}
	return maxCommitTS, nil
}

// recoverSegment replays one segment's records into pending/target. It
// returns the file offset immediately following the last CommitMarker seen
// in this segment (the truncation point if this segment turns out to be
// the last one and ends with an orphan burst), and whether a corrupted
// header was found (which stops all further segments).
func recoverSegment(dir string, id uint64, pending *[]pendingRecord, target Target, maxCommitTS *types.Timestamp) (int64, bool, error) {
	path, err := segmentPath(dir, id)
	if err != nil {
		return 0, true, err
	}
	f, hdr, err := openSegmentForRecovery(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, true, err
	}
	defer f.Close()
	if hdr.Version != segmentVersion {
		return 0, true, ppdberr.Newf(ppdberr.Corrupted, "segment %s has unsupported version %d", path, hdr.Version)
	}

	validEnd := int64(segmentHeaderLen)
	for {
		rec, err := readRecord(f)
		if err == io.EOF {
			break
		}
		if err == errTornTail {
			// Truncate mentally, continue to the next segment.
			break
		}
		if err != nil {
			// Corrupted header: stop recovery entirely.
			return validEnd, true, nil
		}

		switch rec.Type {
		case Put:
			*pending = append(*pending, pendingRecord{table: rec.Table, key: rec.Key, value: rec.Value})
		case Delete:
			*pending = append(*pending, pendingRecord{table: rec.Table, delete: true, key: rec.Key})
		case CommitMarker:
			if err := materialize(*pending, target, types.Timestamp(rec.CommitTS)); err != nil {
				return validEnd, true, err
			}
			*pending = (*pending)[:0]
			if types.Timestamp(rec.CommitTS) > *maxCommitTS {
				*maxCommitTS = types.Timestamp(rec.CommitTS)
			}
		}

		pos, posErr := f.Seek(0, io.SeekCurrent)
		if posErr == nil && rec.Type == CommitMarker {
			validEnd = pos
		}
	}
	return validEnd, false, nil
}

func materialize(records []pendingRecord, target Target, commitTS types.Timestamp) error {
	for _, r := range records {
		var err error
		if r.delete {
			err = target.ApplyDelete(r.table, r.key, commitTS)
		} else {
			err = target.ApplyPut(r.table, r.key, r.value, commitTS)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// truncateOrphanTail cuts a segment file back to validEnd, discarding any
// bytes written after the last CommitMarker. Without this, a second crash
// could leave a fresh transaction's burst appended directly after a
// previous crash's orphaned one; since Put/Delete records carry no txn-id,
// replay would then merge both bursts into whichever CommitMarker comes
// next and resurrect writes that were never committed. No aborted or
// partial transaction may be resurrected by recovery.
func truncateOrphanTail(dir string, id uint64, validEnd int64) error {
	path, err := segmentPath(dir, id)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return ppdberr.Wrap(ppdberr.Io, err, "open segment %s for tail truncation", path)
	}
	defer f.Close()
	if err := f.Truncate(validEnd); err != nil {
		return ppdberr.Wrap(ppdberr.Io, err, "truncate segment %s to %d", path, validEnd)
	}
	return f.Sync()
}
