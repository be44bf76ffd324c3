package database

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/ppdb/pkg/log"
	"github.com/cuemby/ppdb/pkg/metrics"
	"github.com/cuemby/ppdb/pkg/mvcc"
	"github.com/cuemby/ppdb/pkg/storage"
	"github.com/cuemby/ppdb/pkg/txn"
	"github.com/cuemby/ppdb/pkg/types"
	"github.com/cuemby/ppdb/pkg/wal"
)

const (
	gcInterval      = 5 * time.Second
	archiveInterval = 30 * time.Second
)

// DB is the top-level database handle: it owns the table registry, the
// WAL, the transaction manager, and the background GC/archiver goroutines
// behind one constructor.
type DB struct {
	cfg        types.Config
	instanceID uuid.UUID

	registry  *storage.Registry
	wal       *wal.WAL
	mgr       *txn.Manager
	gc        *mvcc.GC
	archiver  *wal.Archiver
	collector *metrics.Collector

	cancel context.CancelFunc

	reads, writes, cacheHits, cacheMisses atomic.Uint64
	bytesRead, bytesWritten               atomic.Uint64
	conflicts, deadlocks                  atomic.Uint64
}

// Open opens a database rooted at cfg.WAL.DirPath, replaying any existing
// WAL before returning. It starts the MVCC garbage collector, WAL
// archiver, and metrics collector as supervised background goroutines.
func Open(cfg types.Config) (*DB, error) {
	db := &DB{
		cfg:        cfg,
		instanceID: uuid.New(),
		registry:   storage.NewRegistry(),
	}

	w, err := wal.Open(cfg.WAL, db)
	if err != nil {
		return nil, err
	}
	db.wal = w
	db.mgr = txn.NewManager(db.registry, w, cfg, w.RecoveredCommitTS())
	db.gc = mvcc.NewGC(db.registry.Tables, db.mgr.OldestSnapshotFunc(), gcInterval)
	db.archiver = wal.NewArchiver(w, archiveInterval, db.archivable)
	db.collector = metrics.NewCollector(db)

	ctx, cancel := context.WithCancel(context.Background())
	db.cancel = cancel
	db.mgr.StartReaper(ctx)
	db.gc.Start(ctx)
	db.archiver.Start(ctx)
	db.collector.Start(ctx)

	metrics.RegisterComponent("wal", true, "recovered")
	metrics.RegisterComponent("gc", true, "running")
	metrics.RegisterComponent("archiver", true, "running")

	log.WithComponent("database").Info().
		Str("instance_id", db.instanceID.String()).
		Str("wal_dir", cfg.WAL.DirPath).
		Msg("database opened")
	return db, nil
}

// InstanceID identifies this handle, for log/metric correlation when
// multiple in-process databases are open.
func (db *DB) InstanceID() uuid.UUID { return db.instanceID }

// Close drains the background goroutines and flushes the WAL.
func (db *DB) Close() error {
	if err := db.mgr.StopReaper(); err != nil {
		return err
	}
	if err := db.gc.Stop(); err != nil {
		return err
	}
	if err := db.archiver.Stop(); err != nil {
		return err
	}
	if err := db.collector.Stop(); err != nil {
		return err
	}
	metrics.UpdateComponent("wal", false, "closed")
	metrics.UpdateComponent("gc", false, "closed")
	metrics.UpdateComponent("archiver", false, "closed")
	db.cancel()
	return db.wal.Close()
}

// Stats reports the per-database counters.
func (db *DB) Stats() types.Stats {
	return types.Stats{
		Reads:        db.reads.Load(),
		Writes:       db.writes.Load(),
		CacheHits:    db.cacheHits.Load(),
		CacheMisses:  db.cacheMisses.Load(),
		BytesRead:    db.bytesRead.Load(),
		BytesWritten: db.bytesWritten.Load(),
		Conflicts:    db.conflicts.Load(),
		Deadlocks:    db.deadlocks.Load(),
		ActiveTxns:   db.mgr.ActiveCount(),
		WALSegments:  db.wal.SegmentCount(),
		WALBytes:     db.wal.TotalBytes(),
	}
}

// Begin starts a transaction at the given isolation level (
// "txn_begin").
func (db *DB) Begin(iso types.IsolationLevel, flags types.TxnFlags) *Txn {
	return &Txn{t: db.mgr.Begin(iso, flags), db: db}
}

// BeginDefault starts a transaction at the database's configured default
// isolation level.
func (db *DB) BeginDefault(flags types.TxnFlags) *Txn {
	return db.Begin(db.cfg.DefaultIsolation, flags)
}

// ListTables returns every table name currently registered.
func (db *DB) ListTables() []string { return db.registry.ListTables() }

// archivable implements wal.ArchivabilityFunc: a segment is archivable once
// no active transaction's snapshot predates its youngest commit timestamp
//. A segment that has never seen a
// CommitMarker (nothing committed from it yet) is never archivable.
func (db *DB) archivable(segmentID uint64) (bool, error) {
	maxTS, ok := db.wal.SegmentMaxCommitTS(segmentID)
	if !ok {
		return false, nil
	}
	return db.mgr.OldestSnapshotFunc()() >= maxTS, nil
}

// ApplyPut implements wal.Target: it replays a committed Put directly into
// the named table's version chain, publishing it at the record's commit
// timestamp without going through the transaction manager (recovery is a
// single-threaded sequential replay in commit order, so no conflict can
// occur; writer id 0 is a sentinel no live transaction ever uses, since
// pkg/txn's id counter starts at 1).
func (db *DB) ApplyPut(table string, key, value []byte, commitTS types.Timestamp) error {
	mv, err := db.tableForReplay(table)
	if err != nil {
		return err
	}
	rec, err := mv.Put(0, types.ReadUncommitted, 0, key, value, false)
	if err != nil {
		return err
	}
	rec.Publish(commitTS)
	return nil
}

// ApplyDelete is ApplyPut's tombstone counterpart.
func (db *DB) ApplyDelete(table string, key []byte, commitTS types.Timestamp) error {
	mv, err := db.tableForReplay(table)
	if err != nil {
		return err
	}
	rec, err := mv.Delete(0, types.ReadUncommitted, 0, key)
	if err != nil {
		return err
	}
	rec.Publish(commitTS)
	return nil
}

func (db *DB) tableForReplay(name string) (*mvcc.Table, error) {
	if mv, ok := db.registry.Table(name); ok {
		return mv, nil
	}
	return db.registry.CreateTable(name)
}
