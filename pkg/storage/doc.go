/*
Package storage is the table-facing facade between pkg/txn and pkg/mvcc: a
named Table binds one pkg/mvcc.Table (and therefore one skiplist index) to
a name, and a Handle binds a transaction to a table for get/put/delete and
for ordered scans (Handle.Scan returns a pkg/mvcc.Cursor).

The Registry defined here holds the name-to-Table map and implements table
creation and drop; pkg/database owns the Registry instance.

A generic key/value table API over arbitrary byte keys, backed by
pkg/mvcc.Table rather than a single fixed-schema store.
*/
package storage
