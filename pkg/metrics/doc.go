/*
Package metrics provides Prometheus metrics collection and exposition for ppdb.

The metrics package defines and registers every ppdb metric using the
Prometheus client library, giving observability into operation counts,
byte throughput, conflicts, WAL size, and commit/get/put/gc/archive
latency. Metrics are exposed via an HTTP endpoint for scraping by
Prometheus servers.

# Metrics Catalog

Storage Gauges (polled from a Stater's Stats()/ListTables() by Collector;
pkg/database.DB satisfies Stater):

ppdb_reads_total:
  - Total number of get operations served.

ppdb_writes_total:
  - Total number of put/delete operations applied.

ppdb_cache_hits_total / ppdb_cache_misses_total:
  - Get operations that resolved a value / found nothing visible.

ppdb_bytes_read_total / ppdb_bytes_written_total:
  - Key bytes looked up plus value bytes returned by gets / accepted by puts.

ppdb_conflicts_total:
  - Write-write or serializable validation conflicts.

ppdb_deadlocks_total:
  - Serializable cycles detected at commit validation.

ppdb_active_transactions:
  - Currently active transactions.

ppdb_wal_segments / ppdb_wal_bytes_total:
  - WAL segment files on disk / total bytes written across them.

ppdb_tables_total:
  - Tables currently registered.

Operation Latency Histograms (observed by Timers owned by pkg/database's
Txn.Commit and Handle.Get/Put, and by pkg/mvcc.GC's and pkg/wal.Archiver's
sweep loops):

ppdb_commit_duration_seconds, ppdb_get_duration_seconds,
ppdb_put_duration_seconds, ppdb_gc_sweep_duration_seconds,
ppdb_wal_archive_sweep_duration_seconds.

Health (RegisterComponent/UpdateComponent): pkg/database.Open registers
"wal", "gc", and "archiver" as healthy; pkg/wal.Archiver flips "archiver"
unhealthy if a sweep fails.

# Usage

	import "github.com/cuemby/ppdb/pkg/metrics"

	collector := metrics.NewCollector(db) // db satisfies Stater
	collector.Start(ctx)
	defer collector.Stop()

	timer := metrics.NewTimer()
	// ... commit a transaction ...
	timer.ObserveDuration(metrics.CommitDuration)

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)
*/
package metrics
