// Package database is the top-level handle a caller opens: it owns the
// table registry, the write-ahead log, the transaction manager, and the
// background MVCC garbage collector and WAL archiver, wiring them all
// together behind one constructor.
package database
