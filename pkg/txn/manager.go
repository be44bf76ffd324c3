package txn

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/ppdb/pkg/log"
	"github.com/cuemby/ppdb/pkg/mvcc"
	"github.com/cuemby/ppdb/pkg/types"
	"github.com/cuemby/ppdb/pkg/wal"
)

// TableRegistry is the subset of pkg/database's table registry the
// transaction manager needs: lookup, and the two DDL operations a write
// transaction may perform.
// pkg/database implements this directly; keeping it as an interface here
// avoids an import cycle (database depends on txn, not the reverse).
type TableRegistry interface {
	Table(name string) (*mvcc.Table, bool)
	CreateTable(name string) (*mvcc.Table, error)
	DropTable(name string) error
}

// Manager owns the monotonic txn-id and commit-timestamp counters, the set
// of active transactions (for snapshot capture and the timeout reaper), and
// the WAL and table registry every commit touches.
type Manager struct {
	registry TableRegistry
	wal      *wal.WAL

	nextTxnID    atomic.Uint64
	nextCommitTS atomic.Uint64

	lockTimeout time.Duration
	txnTimeout  time.Duration

	// enableMVCC selects full version-chain visibility when true; when
	// false every operation runs at ReadUncommitted and Serializable
	// commit validation is skipped, giving a single-version fast path
	// where reads never block and writes are last-writer-wins.
	enableMVCC bool
	// enableLogging gates whether Commit appends to the WAL at all.
	enableLogging bool

	mu     sync.Mutex
	active map[types.TxnID]*Txn

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewManager constructs a transaction manager. seedCommitTS should be the
// highest commit timestamp WAL recovery observed, so freshly begun
// transactions never see a commit timestamp reused from before a restart.
func NewManager(registry TableRegistry, w *wal.WAL, cfg types.Config, seedCommitTS types.Timestamp) *Manager {
	m := &Manager{
		registry:      registry,
		wal:           w,
		lockTimeout:   cfg.LockTimeout,
		txnTimeout:    cfg.TxnTimeout,
		enableMVCC:    cfg.EnableMVCC,
		enableLogging: cfg.EnableLogging,
		active:        make(map[types.TxnID]*Txn),
	}
	m.nextCommitTS.Store(uint64(seedCommitTS))
	return m
}

// StartReaper launches the background goroutine that aborts transactions
// exceeding txnTimeout, supervised with golang.org/x/sync/errgroup.
func (m *Manager) StartReaper(ctx context.Context) {
	if m.txnTimeout <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	m.group = group

	group.Go(func() error {
		interval := m.txnTimeout / 4
		if interval <= 0 {
			interval = 100 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				for _, expired := range m.expiredTxns() {
					log.WithTxnID(uint64(expired.id)).Warn().
						Str("component", "txn-reaper").
						Msg("aborting transaction: timeout exceeded")
					_ = expired.Abort()
				}
			}
		}
	})
}

// StopReaper cancels the reaper loop and waits for it to exit.
func (m *Manager) StopReaper() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	return m.group.Wait()
}

func (m *Manager) expiredTxns() []*Txn {
	deadline := time.Now().Add(-m.txnTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []*Txn
	for _, t := range m.active {
		if t.beganAt.Before(deadline) {
			expired = append(expired, t)
		}
	}
	return expired
}

// Begin starts a new transaction at the given isolation level, capturing a
// snapshot of the currently active transaction set.
func (m *Manager) Begin(iso types.IsolationLevel, flags types.TxnFlags) *Txn {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := types.TxnID(m.nextTxnID.Add(1))
	snap := types.Snapshot{
		CommitTS: types.Timestamp(m.nextCommitTS.Load()),
		Active:   make(map[types.TxnID]struct{}, len(m.active)),
	}
	for activeID := range m.active {
		snap.Active[activeID] = struct{}{}
	}

	t := &Txn{
		id:       id,
		iso:      iso,
		flags:    flags,
		snapshot: snap,
		beganAt:  time.Now(),
		mgr:      m,
		reads:    make(map[tableKey]*mvcc.Record),
	}
	t.state.Store(uint32(types.Active))
	m.active[id] = t
	return t
}

// ActiveCount reports the number of currently active transactions, for
// pkg/database's Stats (the active-transaction gauge).
func (m *Manager) ActiveCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.active))
}

func (m *Manager) unregister(id types.TxnID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}

// oldestSnapshot reports the lowest CommitTS among active transactions'
// snapshots, the watermark pkg/mvcc's GC and the WAL archiver use to decide
// what is safe to reclaim.
func (m *Manager) oldestSnapshot() types.Timestamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldest := types.Timestamp(m.nextCommitTS.Load())
	for _, t := range m.active {
		if t.snapshot.CommitTS < oldest {
			oldest = t.snapshot.CommitTS
		}
	}
	return oldest
}

// OldestSnapshotFunc adapts Manager for pkg/mvcc.NewGC.
func (m *Manager) OldestSnapshotFunc() func() types.Timestamp {
	return m.oldestSnapshot
}

func (m *Manager) nextTS() types.Timestamp {
	return types.Timestamp(m.nextCommitTS.Add(1))
}
