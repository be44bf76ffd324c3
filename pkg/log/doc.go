/*
Package log provides structured logging for ppdb using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper
functions attaching storage-domain context (transaction id, table name, WAL
segment id) to a child logger.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init(Config)
  - Thread-safe concurrent writes

Configuration:
  - Level: filter messages below threshold (debug/info/warn/error)
  - JSONOutput: JSON vs human-readable console output
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: tag logs with the owning package (e.g. "wal", "txn", "gc")
  - WithTxnID: tag logs with a transaction id
  - WithTable: tag logs with a table name
  - WithSegment: tag logs with a WAL segment id

# Usage

	import "github.com/cuemby/ppdb/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("database opened")

	walLog := log.WithComponent("wal")
	walLog.Info().Uint64("segment", id).Msg("segment rotated")

	txnLog := log.WithTxnID(uint64(txn.ID()))
	txnLog.Debug().Str("table", "users").Msg("write buffered")

# Integration Points

This package is used by pkg/wal (segment rotation, recovery, archive sweep
failures), pkg/txn (timeout reaper), pkg/storage (table create/drop),
pkg/database (open) and cmd/ppdb for component-scoped structured logging.
Transaction begin/commit/abort and GC sweeps do not log.
*/
package log
