package skiplist

import (
	"bytes"
	"math/rand/v2"
	"sync/atomic"

	"github.com/cuemby/ppdb/pkg/ppdberr"
)

// state tags a node Valid or Deleted.
type state uint32

const (
	stateValid state = iota
	stateDeleted
)

// Node is a skiplist node. Fields are never mutated in place after
// publication except the state tag, the value handle (CAS), and forward
// pointers (CAS) — see
type Node struct {
	key   []byte
	level int

	state atomic.Uint32
	refs  atomic.Int32

	value atomic.Value // holds the opaque value handle (e.g. *mvcc chain head)
	next  []atomic.Pointer[Node]
	back  atomic.Pointer[Node] // bottom-level backward link, best-effort
}

// Key returns the node's key. Safe to call without holding a reference
// beyond the one the caller already has (the key is never mutated).
func (n *Node) Key() []byte { return n.key }

// Value returns the current value handle. Callers resolve visibility
// themselves — the skiplist hands back whatever the chain head
// currently is.
func (n *Node) Value() any { return n.value.Load() }

// CompareAndSwapValue installs a new value handle iff the current one
// matches old. The CAS is a direct pass-through to sync/atomic.Value, so
// every caller for a given node must agree on one concrete handle type
// (pkg/mvcc always stores *mvcc.Chain, and publishes new version heads
// inside that Chain rather than through this method).
func (n *Node) CompareAndSwapValue(old, new any) bool {
	return n.value.CompareAndSwap(old, new)
}

// StoreValue unconditionally installs a new value handle.
func (n *Node) StoreValue(v any) { n.value.Store(v) }

func (n *Node) isDeleted() bool { return state(n.state.Load()) == stateDeleted }

func (n *Node) hold() *Node {
	n.refs.Add(1)
	return n
}

// Release drops a reference acquired by Find or a Cursor hop. The count is
// bookkeeping only: Remove unlinks a node whether or not references are
// still held, and nodes are garbage collected by the Go runtime once
// unreachable.
func (n *Node) Release() {
	n.refs.Add(-1)
}

func newNode(key []byte, level int, value any) *Node {
	n := &Node{
		key:   append([]byte(nil), key...),
		level: level,
		next:  make([]atomic.Pointer[Node], level),
	}
	n.refs.Store(1)
	n.value.Store(value)
	return n
}

// Skiplist is the lock-free ordered index described
type Skiplist struct {
	head *Node
	size atomic.Int64
}

// New creates an empty skiplist.
func New() *Skiplist {
	head := &Node{
		level: maxLevel,
		next:  make([]atomic.Pointer[Node], maxLevel),
	}
	head.state.Store(uint32(stateValid))
	return &Skiplist{head: head}
}

const maxLevel = 32

func randomLevel() int {
	level := 1
	for rand.Float64() < 0.25 && level < maxLevel {
		level++
	}
	return level
}

func less(a, b []byte) bool { return bytes.Compare(a, b) < 0 }
func equal(a, b []byte) bool { return bytes.Equal(a, b) }

// search descends from the head top-down, recording the predecessor at
// each level. It returns the immediate successor of the predecessors at
// level 0 (the candidate node, if its key matches target) and whether that
// node's key equals target.
func (s *Skiplist) search(key []byte) (update [maxLevel]*Node, found *Node) {
	pred := s.head
	for level := maxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && less(curr.key, key) {
			pred = curr
			curr = pred.next[level].Load()
		}
		update[level] = pred
	}
	candidate := pred.next[0].Load()
	if candidate != nil && equal(candidate.key, key) {
		found = candidate
	}
	return update, found
}

// Find looks up key and returns the owning node with an extra reference
// held on behalf of the caller. Callers must call Release when done.
// Deleted nodes are invisible to Find.
func (s *Skiplist) Find(key []byte) (*Node, bool) {
	_, found := s.search(key)
	if found == nil || found.isDeleted() {
		return nil, false
	}
	found.hold()
	return found, true
}

// InsertOrReplace implements's insert_or_replace: if a Valid node
// with this key exists, its value handle is swapped (publishing a new
// version-chain head); if a Deleted node is observed, it is resurrected;
// otherwise a fresh node is linked in bottom-up.
//
// replaceFn decides what to install given the previously-visible value
// handle (nil if there was none, or if the slot was Deleted). It must be
// safe to call more than once, since CAS races cause the whole operation to
// retry from the top.
func (s *Skiplist) InsertOrReplace(key []byte, replaceFn func(old any) (any, error)) (*Node, error) {
	if len(key) == 0 {
		return nil, ppdberr.Newf(ppdberr.InvalidArgument, "empty key")
	}
	for {
		update, found := s.search(key)

		if found != nil {
			if !found.isDeleted() {
				old := found.Value()
				newVal, err := replaceFn(old)
				if err != nil {
					return nil, err
				}
				if found.CompareAndSwapValue(old, newVal) {
					return found, nil
				}
				continue // lost race with another writer, retry
			}
			// Deleted node observed: attempt resurrection.
			if found.state.CompareAndSwap(uint32(stateDeleted), uint32(stateValid)) {
				newVal, err := replaceFn(nil)
				if err != nil {
					found.state.Store(uint32(stateDeleted))
					return nil, err
				}
				found.StoreValue(newVal)
				s.size.Add(1)
				return found, nil
			}
			// Lost the resurrection race; treat as fresh insert and retry.
			continue
		}

		newVal, err := replaceFn(nil)
		if err != nil {
			return nil, err
		}

		level := randomLevel()
		node := newNode(key, level, newVal)
		node.state.Store(uint32(stateValid))

		for i := 0; i < level; i++ {
			node.next[i].Store(update[i].next[i].Load())
		}

		// Bottom-level CAS is the linearization point.
		if !update[0].next[0].CompareAndSwap(node.next[0].Load(), node) {
			continue // predecessor changed underneath us, restart search
		}

		node.back.Store(update[0])
		if succ := node.next[0].Load(); succ != nil {
			succ.back.Store(node)
		}

		for i := 1; i < level; i++ {
			for {
				succ := update[i].next[i].Load()
				node.next[i].Store(succ)
				if update[i].next[i].CompareAndSwap(succ, node) {
					break
				}
				// A concurrent insert changed this predecessor's level-i
				// pointer; re-run the search from the top for fresh
				// predecessors and retry linking this level only.
				update, _ = s.search(key)
			}
		}

		s.size.Add(1)
		return node, nil
	}
}

// Remove implements's remove: CAS the state tag Valid->Deleted,
// then unlink level-by-level bottom-up. Returns the value handle the node
// held at the moment of removal.
func (s *Skiplist) Remove(key []byte) (any, bool) {
	update, found := s.search(key)
	if found == nil {
		return nil, false
	}
	if !found.state.CompareAndSwap(uint32(stateValid), uint32(stateDeleted)) {
		return nil, false // another remover won
	}

	for level := found.level - 1; level >= 0; level-- {
		for {
			pred := update[level]
			succ := found.next[level].Load()
			if pred.next[level].CompareAndSwap(found, succ) {
				break
			}
			// pred changed; re-find the (now-updated) predecessor chain
			// for this key and retry this level only.
			update, _ = s.search(key)
			if update[level].next[level].Load() != found {
				break // someone else already unlinked this level
			}
		}
	}

	if succ := found.next[0].Load(); succ != nil {
		succ.back.Store(update[0])
	}

	val := found.Value()
	found.Release()
	s.size.Add(-1)
	return val, true
}

// Len returns the approximate number of Valid nodes.
func (s *Skiplist) Len() int64 { return s.size.Load() }

// Visit walks every Valid node in ascending order, calling fn with the key
// and value handle. Visit stops early if fn returns false. This backs
//'s "visitor traversal" and RangeScan.
func (s *Skiplist) Visit(fn func(key []byte, value any) bool) {
	curr := s.head.next[0].Load()
	for curr != nil {
		if !curr.isDeleted() {
			if !fn(curr.key, curr.Value()) {
				return
			}
		}
		curr = curr.next[0].Load()
	}
}

// RangeScan walks Valid nodes with keys in [start, end) in ascending order.
// A nil end means unbounded.
func (s *Skiplist) RangeScan(start, end []byte, fn func(key []byte, value any) bool) {
	pred := s.head
	for level := maxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && less(curr.key, start) {
			pred = curr
			curr = pred.next[level].Load()
		}
	}
	curr := pred.next[0].Load()
	for curr != nil {
		if end != nil && !less(curr.key, end) {
			return
		}
		if !curr.isDeleted() {
			if !fn(curr.key, curr.Value()) {
				return
			}
		}
		curr = curr.next[0].Load()
	}
}
