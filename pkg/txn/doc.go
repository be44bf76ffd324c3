/*
Package txn is the transaction manager: it assigns monotonic txn-ids and
commit timestamps, captures snapshots at begin, tracks each transaction's
write set, and drives the state machine Active -> Committing -> Committed
or Aborted.

A commit validates per the declared isolation level — Serializable commits
re-check every read against the writer's commit timestamp via
pkg/mvcc.Table.ValidateRead — then appends the write set and a commit
marker to the write-ahead log before publishing versions in place. An
abort releases versions without ever touching the WAL.

A background reaper aborts transactions that outlive their configured
timeout, and lock-acquisition retries back off with
github.com/cenkalti/backoff/v4, bounded by lock_timeout_ms.
*/
package txn
