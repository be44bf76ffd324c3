package database

import (
	"testing"

	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := types.DefaultConfig(t.TempDir())
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateTablePutCommitGet(t *testing.T) {
	db := openTestDB(t)

	tx := db.BeginDefault(types.TxnFlags{})
	h, err := tx.CreateTable("widgets")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := db.Begin(types.ReadCommitted, types.TxnFlags{})
	h2, err := tx2.Table("widgets")
	if err != nil {
		t.Fatal(err)
	}
	value, found, err := h2.Get([]byte("k1"))
	if err != nil || !found || string(value) != "v1" {
		t.Fatalf("got %q %v %v", value, found, err)
	}
	_ = tx2.Abort()

	stats := db.Stats()
	if stats.Writes == 0 || stats.Reads == 0 || stats.CacheHits == 0 {
		t.Fatalf("stats not recorded: %+v", stats)
	}
}

func TestReadOnlyTxnCannotCreateTable(t *testing.T) {
	db := openTestDB(t)
	tx := db.BeginDefault(types.TxnFlags{ReadOnly: true})
	_, err := tx.CreateTable("widgets")
	if err == nil || ppdberr.KindOf(err) != ppdberr.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	_ = tx.Abort()
}

func TestOpenUnknownTableFails(t *testing.T) {
	db := openTestDB(t)
	tx := db.BeginDefault(types.TxnFlags{})
	_, err := tx.Table("does-not-exist")
	if err == nil || ppdberr.KindOf(err) != ppdberr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	_ = tx.Abort()
}

func TestWALRecoveryReplaysCommittedWrites(t *testing.T) {
	dir := t.TempDir()
	cfg := types.DefaultConfig(dir)

	db, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	tx := db.BeginDefault(types.TxnFlags{})
	h, err := tx.CreateTable("widgets")
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := h.Put([]byte(k), []byte("v-"+k)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	tx2 := db2.BeginDefault(types.TxnFlags{ReadOnly: true})
	h2, err := tx2.Table("widgets")
	if err != nil {
		t.Fatalf("table should have been recreated by replay: %v", err)
	}
	value, found, err := h2.Get([]byte("b"))
	if err != nil || !found || string(value) != "v-b" {
		t.Fatalf("got %q %v %v", value, found, err)
	}
	_ = tx2.Abort()
}
