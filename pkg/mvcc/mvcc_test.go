package mvcc

import (
	"testing"

	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/types"
)

func commit(t *testing.T, rec *Record, ts types.Timestamp) {
	t.Helper()
	rec.Publish(ts)
}

// TestSnapshotIsolation is scenario 2.
func TestSnapshotIsolation(t *testing.T) {
	tbl := NewTable()

	// k=v1 committed at ts=1 by txn 1.
	rec1, err := tbl.Put(1, types.Serializable, 0, []byte("k"), []byte("v1"), false)
	if err != nil {
		t.Fatalf("initial put: %v", err)
	}
	commit(t, rec1, 1)

	// R begins RepeatableRead with snapshot ts=1 (sees txn 1 committed,
	// nothing else active).
	rSnap := types.Snapshot{CommitTS: 1, Active: map[types.TxnID]struct{}{}}

	// W begins (txn 2), writes v2, commits at ts=2.
	rec2, err := tbl.Put(2, types.RepeatableRead, 1, []byte("k"), []byte("v2"), false)
	if err != nil {
		t.Fatalf("w put: %v", err)
	}
	commit(t, rec2, 2)

	val, found, err := tbl.Get(99, types.RepeatableRead, rSnap, []byte("k"))
	if err != nil || !found {
		t.Fatalf("R get = %q, %v, %v", val, found, err)
	}
	if string(val) != "v1" {
		t.Fatalf("R should still see v1 (snapshot before W committed), got %q", val)
	}

	r2Snap := types.Snapshot{CommitTS: 2, Active: map[types.TxnID]struct{}{}}
	val2, found2, err := tbl.Get(100, types.RepeatableRead, r2Snap, []byte("k"))
	if err != nil || !found2 {
		t.Fatalf("R2 get = %q, %v, %v", val2, found2, err)
	}
	if string(val2) != "v2" {
		t.Fatalf("R2 should see v2, got %q", val2)
	}
}

// TestWriteWriteConflict is scenario 3.
func TestWriteWriteConflict(t *testing.T) {
	tbl := NewTable()

	rec1, err := tbl.Put(1, types.Serializable, 0, []byte("k"), []byte("a"), false)
	if err != nil {
		t.Fatalf("t1 put: %v", err)
	}

	_, err = tbl.Put(2, types.Serializable, 0, []byte("k"), []byte("b"), false)
	if err == nil || ppdberr.KindOf(err) != ppdberr.Conflict {
		t.Fatalf("t2 put should conflict with t1's uncommitted write, got %v", err)
	}

	commit(t, rec1, 1)
}

func TestTombstoneReadsAsNotFound(t *testing.T) {
	tbl := NewTable()
	rec, err := tbl.Put(1, types.ReadCommitted, 0, []byte("k"), []byte("v"), false)
	if err != nil {
		t.Fatal(err)
	}
	commit(t, rec, 1)

	del, err := tbl.Delete(2, types.ReadCommitted, 1, []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	commit(t, del, 2)

	snap := types.Snapshot{CommitTS: 2}
	_, found, err := tbl.Get(99, types.ReadCommitted, snap, []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("deleted key should read as not found")
	}
}

func TestCursorSkipsTombstonesAndInvisibleWrites(t *testing.T) {
	tbl := NewTable()

	for i, k := range []string{"a", "b", "c", "d"} {
		rec, err := tbl.Put(types.TxnID(i+1), types.Serializable, 0, []byte(k), []byte(k+k), false)
		if err != nil {
			t.Fatal(err)
		}
		commit(t, rec, types.Timestamp(i+1))
	}
	del, err := tbl.Delete(5, types.Serializable, 4, []byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	commit(t, del, 5)
	// An in-progress write by another transaction must stay invisible.
	if _, err := tbl.Put(6, types.Serializable, 5, []byte("e"), []byte("ee"), false); err != nil {
		t.Fatal(err)
	}

	snap := types.Snapshot{CommitTS: 5}
	cur := tbl.NewCursor(99, types.ReadCommitted, snap)
	defer cur.Close()

	var keys []string
	for ok := cur.Seek(nil); ok; ok = cur.Next() {
		keys = append(keys, string(cur.Key()))
	}
	want := []string{"a", "c", "d"}
	if len(keys) != len(want) {
		t.Fatalf("got keys %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got keys %v, want %v", keys, want)
		}
	}
}

func TestReadUncommittedSeesInProgressWrite(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Put(1, types.ReadUncommitted, 0, []byte("k"), []byte("dirty"), false)
	if err != nil {
		t.Fatal(err)
	}

	val, found, err := tbl.Get(2, types.ReadUncommitted, types.Snapshot{}, []byte("k"))
	if err != nil || !found {
		t.Fatalf("read uncommitted should see dirty write: %v %v", found, err)
	}
	if string(val) != "dirty" {
		t.Fatalf("got %q, want dirty", val)
	}
}
