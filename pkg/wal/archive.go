package wal

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuemby/ppdb/pkg/log"
	"github.com/cuemby/ppdb/pkg/metrics"
	"github.com/cuemby/ppdb/pkg/ppdberr"
)

// ArchivabilityFunc reports whether segment id is archivable: every txn-id
// referenced in it has been superseded by later committed versions, and no
// reader's snapshot predates the segment's youngest commit timestamp.
// pkg/database supplies this by checking its
// oldest-active-snapshot watermark against the segment's recorded max
// commit timestamp.
type ArchivabilityFunc func(segmentID uint64) (bool, error)

// Archiver periodically moves archivable segments out of the live WAL
// directory into an archive/ subdirectory. It never deletes a segment —
// only relocates it. Runs as a supervised goroutine via
// golang.org/x/sync/errgroup.
type Archiver struct {
	w        *WAL
	interval time.Duration
	archivable ArchivabilityFunc

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewArchiver constructs an archiver for w. archivable decides per-segment
// eligibility; interval governs how often the sweep runs.
func NewArchiver(w *WAL, interval time.Duration, archivable ArchivabilityFunc) *Archiver {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Archiver{w: w, interval: interval, archivable: archivable}
}

// Start launches the sweep loop in an errgroup goroutine. A failed sweep is
// logged and marks the "archiver" health component unhealthy; the loop
// keeps running and returns nil once its context is cancelled.
func (a *Archiver) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	group, gctx := errgroup.WithContext(ctx)
	a.group = group

	group.Go(func() error {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		logger := log.WithComponent("wal-archiver")
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := a.sweep(); err != nil {
					logger.Error().Err(err).Msg("archive sweep failed")
					metrics.UpdateComponent("archiver", false, err.Error())
				} else {
					metrics.UpdateComponent("archiver", true, "running")
				}
			}
		}
	})
}

// Stop cancels the sweep loop and waits for it to exit.
func (a *Archiver) Stop() error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	return a.group.Wait()
}

// sweep archives every currently-closed segment the ArchivabilityFunc
// approves. The segment the writer is actively appending to is always
// excluded, since it is by definition not yet superseded.
func (a *Archiver) sweep() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WALArchiveSweepDuration)

	ids, err := listSegmentIDs(a.w.dir)
	if err != nil {
		return err
	}
	activeID := a.w.activeSegmentID()

	if err := os.MkdirAll(archiveDir(a.w.dir), 0o755); err != nil {
		return ppdberr.Wrap(ppdberr.Io, err, "create archive dir")
	}

	for _, id := range ids {
		if id == activeID {
			continue
		}
		ok, err := a.archivable(id)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := a.archiveSegment(id); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archiver) archiveSegment(id uint64) error {
	src, err := segmentPath(a.w.dir, id)
	if err != nil {
		return err
	}
	dstDir := archiveDir(a.w.dir)
	dst, err := segmentPath(dstDir, id)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return ppdberr.Wrap(ppdberr.Io, err, "archive segment %s", src)
	}
	return nil
}
