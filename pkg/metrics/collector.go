package metrics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/ppdb/pkg/types"
)

// Stater is the subset of *database.DB the collector polls. Defined here
// rather than importing pkg/database directly: pkg/database imports this
// package to drive the collector and the Timers, so pkg/metrics can't
// import pkg/database back without a cycle.
type Stater interface {
	Stats() types.Stats
	ListTables() []string
}

// Collector polls a database handle's statistics on an interval and
// republishes them as Prometheus gauges. Runs as a supervised goroutine
// via golang.org/x/sync/errgroup, the same shape as pkg/wal.Archiver and
// pkg/mvcc.GC.
type Collector struct {
	db       Stater
	interval time.Duration

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewCollector creates a new metrics collector bound to db.
func NewCollector(db Stater) *Collector {
	return &Collector{db: db, interval: 15 * time.Second}
}

// Start launches the poll loop, supervised by an errgroup so Stop can
// drain it deterministically.
func (c *Collector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	c.group = group

	group.Go(func() error {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		c.collect()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				c.collect()
			}
		}
	})
}

// Stop cancels the poll loop and waits for it to exit.
func (c *Collector) Stop() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	return c.group.Wait()
}

func (c *Collector) collect() {
	stats := c.db.Stats()

	ReadsTotal.Set(float64(stats.Reads))
	WritesTotal.Set(float64(stats.Writes))
	CacheHitsTotal.Set(float64(stats.CacheHits))
	CacheMissesTotal.Set(float64(stats.CacheMisses))
	BytesReadTotal.Set(float64(stats.BytesRead))
	BytesWrittenTotal.Set(float64(stats.BytesWritten))
	ConflictsTotal.Set(float64(stats.Conflicts))
	DeadlocksTotal.Set(float64(stats.Deadlocks))
	ActiveTransactions.Set(float64(stats.ActiveTxns))
	WALSegmentCount.Set(float64(stats.WALSegments))
	WALBytesTotal.Set(float64(stats.WALBytes))
	TablesTotal.Set(float64(len(c.db.ListTables())))
}
