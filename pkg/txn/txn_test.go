package txn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/ppdb/pkg/mvcc"
	"github.com/cuemby/ppdb/pkg/ppdberr"
	"github.com/cuemby/ppdb/pkg/types"
	"github.com/cuemby/ppdb/pkg/wal"
)

// testRegistry is a minimal in-memory TableRegistry for tests.
type testRegistry struct {
	mu     sync.Mutex
	tables map[string]*mvcc.Table
}

func newTestRegistry() *testRegistry {
	return &testRegistry{tables: make(map[string]*mvcc.Table)}
}

func (r *testRegistry) Table(name string) (*mvcc.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[name]
	return t, ok
}

func (r *testRegistry) CreateTable(name string) (*mvcc.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[name]; exists {
		return nil, ppdberr.New(ppdberr.Exists)
	}
	t := mvcc.NewTable()
	r.tables[name] = t
	return t, nil
}

func (r *testRegistry) DropTable(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, name)
	return nil
}

type noopTarget struct{}

func (noopTarget) ApplyPut(table string, key, value []byte, commitTS types.Timestamp) error {
	return nil
}
func (noopTarget) ApplyDelete(table string, key []byte, commitTS types.Timestamp) error { return nil }

func newTestManager(t *testing.T) (*Manager, *testRegistry) {
	t.Helper()
	reg := newTestRegistry()
	if _, err := reg.CreateTable("accounts"); err != nil {
		t.Fatal(err)
	}
	w, err := wal.Open(types.WALConfig{DirPath: t.TempDir(), SegmentSize: 0}, noopTarget{})
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	cfg := types.DefaultConfig(t.TempDir())
	mgr := NewManager(reg, w, cfg, 0)
	return mgr, reg
}

// TestCommitMakesWritesVisible is scenario 1: a basic transaction
// lifecycle, Begin -> Put -> Commit -> new transaction sees the write.
func TestCommitMakesWritesVisible(t *testing.T) {
	mgr, _ := newTestManager(t)

	tx1 := mgr.Begin(types.Serializable, types.TxnFlags{})
	if err := tx1.Put("accounts", []byte("alice"), []byte("100")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tx1.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if tx1.State() != types.Committed {
		t.Fatalf("expected Committed, got %v", tx1.State())
	}

	tx2 := mgr.Begin(types.ReadCommitted, types.TxnFlags{})
	val, found, err := tx2.Get("accounts", []byte("alice"))
	if err != nil || !found {
		t.Fatalf("get after commit: %v %v %v", val, found, err)
	}
	if string(val) != "100" {
		t.Fatalf("got %q, want 100", val)
	}
	_ = tx2.Abort()
}

// TestAbortDoesNotPublish is "Abort": an aborted write is never
// visible to a later reader.
func TestAbortDoesNotPublish(t *testing.T) {
	mgr, _ := newTestManager(t)

	tx1 := mgr.Begin(types.Serializable, types.TxnFlags{})
	if err := tx1.Put("accounts", []byte("carol"), []byte("5")); err != nil {
		t.Fatal(err)
	}
	if err := tx1.Abort(); err != nil {
		t.Fatal(err)
	}
	if tx1.State() != types.Aborted {
		t.Fatalf("expected Aborted, got %v", tx1.State())
	}

	tx2 := mgr.Begin(types.ReadUncommitted, types.TxnFlags{})
	_, found, err := tx2.Get("accounts", []byte("carol"))
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("aborted write should not be visible, even under ReadUncommitted")
	}
	_ = tx2.Abort()
}

// TestNoWaitSurfacesConflictImmediately is: under no-wait, a
// write-write conflict is surfaced immediately rather than retried.
func TestNoWaitSurfacesConflictImmediately(t *testing.T) {
	mgr, _ := newTestManager(t)

	tx1 := mgr.Begin(types.Serializable, types.TxnFlags{})
	if err := tx1.Put("accounts", []byte("dave"), []byte("1")); err != nil {
		t.Fatal(err)
	}

	tx2 := mgr.Begin(types.Serializable, types.TxnFlags{NoWait: true})
	start := time.Now()
	err := tx2.Put("accounts", []byte("dave"), []byte("2"))
	elapsed := time.Since(start)
	if err == nil || ppdberr.KindOf(err) != ppdberr.Conflict {
		t.Fatalf("expected immediate Conflict, got %v", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Fatalf("no-wait conflict took too long: %v", elapsed)
	}

	_ = tx1.Abort()
	_ = tx2.Abort()
}

// TestSerializableValidationFailsOnStaleRead is scenario 3-adjacent:
// a Serializable transaction that read a key another transaction later
// committed must fail validation at commit time.
func TestSerializableValidationFailsOnStaleRead(t *testing.T) {
	mgr, _ := newTestManager(t)

	seed := mgr.Begin(types.Serializable, types.TxnFlags{})
	if err := seed.Put("accounts", []byte("erin"), []byte("10")); err != nil {
		t.Fatal(err)
	}
	if err := seed.Commit(); err != nil {
		t.Fatal(err)
	}

	reader := mgr.Begin(types.Serializable, types.TxnFlags{})
	if _, _, err := reader.Get("accounts", []byte("erin")); err != nil {
		t.Fatal(err)
	}

	writer := mgr.Begin(types.Serializable, types.TxnFlags{})
	if err := writer.Put("accounts", []byte("erin"), []byte("20")); err != nil {
		t.Fatal(err)
	}
	if err := writer.Commit(); err != nil {
		t.Fatal(err)
	}

	err := reader.Commit()
	if err == nil || ppdberr.KindOf(err) != ppdberr.Conflict {
		t.Fatalf("expected serializable validation to fail, got %v", err)
	}
}

// TestReaperAbortsExpiredTransaction is "Timeouts".
func TestReaperAbortsExpiredTransaction(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.txnTimeout = 20 * time.Millisecond

	mgr.StartReaper(context.Background())
	defer mgr.StopReaper()

	tx := mgr.Begin(types.ReadCommitted, types.TxnFlags{})
	if err := tx.Put("accounts", []byte("frank"), []byte("1")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for tx.State() == types.Active && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if tx.State() != types.Aborted {
		t.Fatalf("expected reaper to abort expired transaction, state = %v", tx.State())
	}
}
