package storage

import (
	"testing"

	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/txn"
	"github.com/cuemby/ppdb/pkg/types"
	"github.com/cuemby/ppdb/pkg/wal"
)

type noopTarget struct{}

func (noopTarget) ApplyPut(table string, key, value []byte, commitTS types.Timestamp) error {
	return nil
}
func (noopTarget) ApplyDelete(table string, key []byte, commitTS types.Timestamp) error { return nil }

func newTestManager(t *testing.T) (*txn.Manager, *Registry) {
	t.Helper()
	reg := NewRegistry()
	w, err := wal.Open(types.WALConfig{DirPath: t.TempDir(), SegmentSize: 0}, noopTarget{})
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	cfg := types.DefaultConfig(t.TempDir())
	return txn.NewManager(reg, w, cfg, 0), reg
}

func TestCreateTableRejectsDuplicate(t *testing.T) {
	_, reg := newTestManager(t)
	if _, err := reg.CreateTable("widgets"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.CreateTable("widgets"); err == nil || ppdberr.KindOf(err) != ppdberr.Exists {
		t.Fatalf("expected Exists, got %v", err)
	}
}

func TestHandlePutGetScan(t *testing.T) {
	mgr, reg := newTestManager(t)
	if _, err := reg.CreateTable("widgets"); err != nil {
		t.Fatal(err)
	}
	table, _ := reg.Lookup("widgets")

	tx := mgr.Begin(types.Serializable, types.TxnFlags{})
	h := Open(table, tx)
	for _, k := range []string{"a", "b", "c"} {
		if err := h.Put([]byte(k), []byte("v-"+k)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := mgr.Begin(types.ReadCommitted, types.TxnFlags{})
	h2 := Open(table, tx2)
	value, found, err := h2.Get([]byte("b"))
	if err != nil || !found || string(value) != "v-b" {
		t.Fatalf("got %q, %v, %v", value, found, err)
	}

	cur := h2.Scan()
	defer cur.Close()
	var keys []string
	for ok := cur.Seek(nil); ok; ok = cur.Next() {
		keys = append(keys, string(cur.Key()))
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("unexpected scan order: %v", keys)
	}
	_ = tx2.Abort()
}

func TestDropTableIsIdempotent(t *testing.T) {
	_, reg := newTestManager(t)
	if _, err := reg.CreateTable("temp"); err != nil {
		t.Fatal(err)
	}
	if err := reg.DropTable("temp"); err != nil {
		t.Fatal(err)
	}
	if err := reg.DropTable("temp"); err != nil {
		t.Fatalf("second drop should be a no-op, got %v", err)
	}
	if _, ok := reg.Table("temp"); ok {
		t.Fatal("dropped table should no longer be found")
	}
}
