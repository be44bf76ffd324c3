package mvcc

import (
	"sync/atomic"

	"github.com/cuemby/ppdb/pkg/types"
)

// status is a version's lifecycle stage, independent of its Timestamp.
type status uint32

const (
	statusInProgress status = iota
	statusCommitted
	statusAborted
)

// version is one MVCC version record: creator txn-id, a monotonically
// comparable commit timestamp (assigned at commit, not at begin), value
// bytes (or a tombstone flag), and a pointer to the previous version.
type version struct {
	creator   types.TxnID
	timestamp atomic.Uint64 // types.Timestamp, InProgressTS until commit
	status    atomic.Uint32
	value     []byte
	tombstone bool
	prev      *version
}

func newVersion(creator types.TxnID, value []byte, tombstone bool, prev *version) *version {
	v := &version{
		creator:   creator,
		value:     value,
		tombstone: tombstone,
		prev:      prev,
	}
	v.timestamp.Store(uint64(types.InProgressTS))
	v.status.Store(uint32(statusInProgress))
	return v
}

func (v *version) Timestamp() types.Timestamp { return types.Timestamp(v.timestamp.Load()) }
func (v *version) Status() status             { return status(v.status.Load()) }

// publish flips an in-progress version to Committed with the given
// timestamp: readers see the new version atomically, one version at a
// time.
func (v *version) publish(ts types.Timestamp) {
	v.timestamp.Store(uint64(ts))
	v.status.Store(uint32(statusCommitted))
}

// abort flips an in-progress version to Aborted; readers thereafter skip it
// like a tombstone.
func (v *version) abort() {
	v.status.Store(uint32(statusAborted))
}

// Chain is the opaque value handle stored in a skiplist node: the head of a
// key's version chain, newest (by commit timestamp) first.
type Chain struct {
	head atomic.Pointer[version]
}

func newChain(head *version) *Chain {
	c := &Chain{}
	c.head.Store(head)
	return c
}

func (c *Chain) loadHead() *version { return c.head.Load() }

func (c *Chain) casHead(old, new *version) bool {
	return c.head.CompareAndSwap(old, new)
}
