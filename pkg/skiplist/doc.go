/*
Package skiplist implements the storage core's ordered index: a lock-free
concurrent skiplist mapping byte-string keys to opaque value handles.

Readers never block writers and vice versa. Structural changes (insert,
remove) are linearized through a single CAS on the bottom-level forward
pointer; higher levels are best-effort shortcuts any traversal can tolerate
missing. Nodes carry a reference count that Find and Cursor positions take
on the node they return and Release drops; the internal hops of search,
Visit and RangeScan take none, and Remove unlinks a node without waiting
for the count to reach zero. Readers that already reached an unlinked node
still finish their hop safely because the Go garbage collector keeps the
node alive while anything points at it, so no hazard-pointer scheme is
needed.

# Level distribution

Node level is chosen at insertion from a geometric distribution with
p = 0.25, capped at MaxLevel (32), using math/rand/v2's global generator —
safe for concurrent use without the contention a single shared *rand.Rand
with its own mutex would introduce; the random source is effectively
per-goroutine, avoiding a shared lock on the hot insert path.

# Reverse iteration

This package maintains a best-effort backward pointer at the bottom level,
updated opportunistically on insert and remove. Cursor.Prev re-validates
the backward pointer before trusting it and falls back to re-walking
forward from the head if it finds the link stale — there is no attempt at
a full B-link scheme, since a stale Prev that re-derives its position costs
an extra scan, not a correctness violation.
*/
package skiplist
