/*
Package mvcc implements the storage core's multi-version concurrency
control layer: per-key version chains, the visibility filter that answers
"what does reader R see?", write–write conflict detection, commit
publication, and background garbage collection of unreachable versions.

Each skiplist node's value handle (pkg/skiplist.Node.Value) is a *Chain, the
head of a singly linked list of *version records ordered newest-first. A
version's Timestamp is the sentinel types.InProgressTS until the owning transaction
commits, at which point pkg/txn assigns a real commit timestamp and calls
Publish to flip the version from in-progress to Committed in place — no new
version is installed, so the existing chain-head pointer a concurrent reader
already dereferenced remains valid.
*/
package mvcc
