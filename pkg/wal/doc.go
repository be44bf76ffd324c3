/*
Package wal implements the storage core's write-ahead log: a directory of
segment files recording every mutation before it becomes visible on commit,
plus crash recovery replay and segment archival.

# On-disk layout

Segment files are named "%010d.log" inside the configured directory,
segment ids assigned in strictly increasing order starting at 1 and never
exceeding 1e9. Each segment begins with a 16-byte little-endian header
(magic 0x4C415750 "PWAL", version 1, segment_size, reserved=0), followed by
a contiguous run of 12-byte little-endian record headers
(type, key_size, value_size) each followed by key_size bytes of key and
value_size bytes of value.

Record types are Put=1, Delete=2, CommitMarker=3. A CommitMarker carries no
key (key_size=0) and a 16-byte value holding txn_id and commit_ts, both
little-endian uint64.

# Recovery

Put and Delete records carry no txn id, so recovery buffers them in a
single in-memory FIFO; each CommitMarker materializes every buffered record
into the caller's rebuild target with the carried commit timestamp and
empties the buffer. This relies on a transaction's records and its
CommitMarker being appended as one uninterrupted burst. Records still
buffered after the last CommitMarker are discarded — an implicit abort of
whatever was in flight when the process crashed — and truncated off the
segment file so later appends cannot be merged with them.
*/
package wal
