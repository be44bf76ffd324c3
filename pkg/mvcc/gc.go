package mvcc

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/ppdb/pkg/metrics"
	"github.com/cuemby/ppdb/pkg/types"
)

// OldestSnapshotFunc reports the commit timestamp of the oldest snapshot any
// currently active transaction holds. pkg/txn supplies this; GC uses it to
// decide which versions no reader can still need.
type OldestSnapshotFunc func() types.Timestamp

// GC periodically walks every registered table's chains, truncating tails
// that have become unreachable, and removes skiplist nodes whose chain has
// collapsed to a single Aborted or GC'd tombstone older than the oldest
// active snapshot.
type GC struct {
	tables  func() []*Table
	oldest  OldestSnapshotFunc
	every   time.Duration
	group   *errgroup.Group
	cancel  context.CancelFunc
}

// NewGC builds a collector. tables is called on every sweep so newly
// created/dropped tables are picked up without restarting the collector.
func NewGC(tables func() []*Table, oldest OldestSnapshotFunc, every time.Duration) *GC {
	return &GC{tables: tables, oldest: oldest, every: every}
}

// Start launches the background sweep loop, supervised by an errgroup so
// Stop can drain it deterministically.
func (g *GC) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	g.group = group
	group.Go(func() error {
		ticker := time.NewTicker(g.every)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				g.sweep()
			}
		}
	})
}

// Stop cancels the sweep loop and waits for it to exit.
func (g *GC) Stop() error {
	if g.cancel == nil {
		return nil
	}
	g.cancel()
	return g.group.Wait()
}

// sweep performs one collection pass over every table.
func (g *GC) sweep() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GCSweepDuration)

	oldest := g.oldest()
	for _, table := range g.tables() {
		table.gcPass(oldest)
	}
}

// gcPass truncates each key's version chain tail once versions older than
// oldest and superseded by a newer committed version are unreachable by any
// live snapshot, and schedules fully-tombstoned nodes for removal.
func (t *Table) gcPass(oldest types.Timestamp) {
	var toRemove [][]byte
	t.index.Visit(func(key []byte, value any) bool {
		chain, ok := value.(*Chain)
		if !ok {
			return true
		}
		head := chain.loadHead()
		if head == nil {
			return true
		}
		truncateTail(head, oldest)

		if head.Status() == statusAborted && head.prev == nil {
			toRemove = append(toRemove, append([]byte(nil), key...))
		} else if head.tombstone && head.Status() == statusCommitted && head.Timestamp() < oldest && head.prev == nil {
			toRemove = append(toRemove, append([]byte(nil), key...))
		}
		return true
	})
	for _, key := range toRemove {
		t.index.Remove(key)
	}
}

// truncateTail walks from head and cuts the prev pointer of the last
// version still needed by some snapshot >= oldest, discarding everything
// strictly older. A version is needed if it is the newest committed
// version with timestamp <= oldest (some active reader's snapshot may still
// resolve to it) — anything strictly behind that is unreachable.
func truncateTail(head *version, oldest types.Timestamp) {
	var lastNeeded *version
	for v := head; v != nil; v = v.prev {
		if v.Status() == statusCommitted && v.Timestamp() <= oldest {
			lastNeeded = v
			break
		}
		lastNeeded = v
	}
	if lastNeeded != nil {
		lastNeeded.prev = nil
	}
}
