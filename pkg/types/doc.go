/*
Package types defines the core data structures shared across the storage
core: configuration, isolation levels, transaction flags, and statistics.

These types have no behavior of their own — they are the vocabulary that
pkg/skiplist, pkg/mvcc, pkg/wal, pkg/txn, pkg/storage, and pkg/database pass
between each other, kept in one package to avoid import cycles.

# Core Types

  - Config: recognized database_open options
  - IsolationLevel: ReadUncommitted / ReadCommitted / RepeatableRead / Serializable
  - TxnFlags: read-only / sync-on-commit / no-wait
  - Stats: per-database operation counters
  - Size limits: MaxKeySize, MaxValueSize, MaxLevel
*/
package types
