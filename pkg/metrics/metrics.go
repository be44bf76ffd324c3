package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage-level gauges, polled from database.DB.Stats().
	ReadsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_reads_total",
			Help: "Total number of get operations served",
		},
	)

	WritesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_writes_total",
			Help: "Total number of put/delete operations applied",
		},
	)

	CacheHitsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_cache_hits_total",
			Help: "Total number of get operations that resolved a value",
		},
	)

	CacheMissesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_cache_misses_total",
			Help: "Total number of get operations that found nothing visible",
		},
	)

	BytesReadTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_bytes_read_total",
			Help: "Total key bytes looked up plus value bytes returned by get operations",
		},
	)

	BytesWrittenTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_bytes_written_total",
			Help: "Total bytes accepted by put operations",
		},
	)

	ConflictsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_conflicts_total",
			Help: "Total number of write-write or serializable validation conflicts",
		},
	)

	DeadlocksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_deadlocks_total",
			Help: "Total number of serializable cycles detected at commit validation",
		},
	)

	ActiveTransactions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_active_transactions",
			Help: "Number of currently active transactions",
		},
	)

	WALSegmentCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_wal_segments",
			Help: "Number of WAL segment files currently on disk",
		},
	)

	WALBytesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_wal_bytes_total",
			Help: "Total bytes written across all WAL segments",
		},
	)

	TablesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppdb_tables_total",
			Help: "Number of tables currently registered",
		},
	)

	// Operation latency histograms, observed by the Timers owned by
	// pkg/database's Txn.Commit and Handle.Get/Put, and by the GC and
	// WAL archiver sweep loops.
	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppdb_commit_duration_seconds",
			Help:    "Time taken to commit a transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	GetDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppdb_get_duration_seconds",
			Help:    "Time taken to resolve a get operation",
			Buckets: prometheus.DefBuckets,
		},
	)

	PutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppdb_put_duration_seconds",
			Help:    "Time taken to install a put's version",
			Buckets: prometheus.DefBuckets,
		},
	)

	GCSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppdb_gc_sweep_duration_seconds",
			Help:    "Time taken for one MVCC garbage collection sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	WALArchiveSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ppdb_wal_archive_sweep_duration_seconds",
			Help:    "Time taken for one WAL archiver sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ReadsTotal)
	prometheus.MustRegister(WritesTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(BytesReadTotal)
	prometheus.MustRegister(BytesWrittenTotal)
	prometheus.MustRegister(ConflictsTotal)
	prometheus.MustRegister(DeadlocksTotal)
	prometheus.MustRegister(ActiveTransactions)
	prometheus.MustRegister(WALSegmentCount)
	prometheus.MustRegister(WALBytesTotal)
	prometheus.MustRegister(TablesTotal)

	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(GetDuration)
	prometheus.MustRegister(PutDuration)
	prometheus.MustRegister(GCSweepDuration)
	prometheus.MustRegister(WALArchiveSweepDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
