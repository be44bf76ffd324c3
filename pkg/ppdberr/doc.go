// Package ppdberr defines the error taxonomy shared by every storage-core
// package: skiplist, mvcc, wal, txn, storage, and database.
//
// Every failure the core returns wraps one of the sentinel errors in this
// package using fmt.Errorf("...: %w", err), so callers can test the kind with
// errors.Is regardless of which layer produced the wrapped message. A handful
// of kinds carry extra structured fields (Conflict's Table/Key, Corrupted's
// segment id); for those, use errors.As against the matching *Error type.
package ppdberr
