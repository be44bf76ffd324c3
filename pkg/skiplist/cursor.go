package skiplist

// Cursor is a forward/backward iterator over Valid nodes. A Cursor holds
// a strong reference on its current node for
// the duration of its lifetime; Close releases it.
type Cursor struct {
	list *Skiplist
	cur  *Node // nil means "before the first key" (positioned at head)
}

// NewCursor returns a cursor positioned before the first key.
func (s *Skiplist) NewCursor() *Cursor {
	return &Cursor{list: s}
}

// Seek positions the cursor at the first Valid key >= key.
func (c *Cursor) Seek(key []byte) bool {
	c.release()
	pred := c.list.head
	for level := maxLevel - 1; level >= 0; level-- {
		curr := pred.next[level].Load()
		for curr != nil && less(curr.key, key) {
			pred = curr
			curr = pred.next[level].Load()
		}
	}
	curr := pred.next[0].Load()
	for curr != nil && curr.isDeleted() {
		curr = curr.next[0].Load()
	}
	if curr == nil {
		c.cur = nil
		return false
	}
	c.cur = curr.hold()
	return true
}

// Next advances to the next Valid key in ascending order, skipping Deleted
// nodes.
func (c *Cursor) Next() bool {
	var next *Node
	if c.cur == nil {
		next = c.list.head.next[0].Load()
	} else {
		next = c.cur.next[0].Load()
	}
	for next != nil && next.isDeleted() {
		next = next.next[0].Load()
	}
	c.release()
	if next == nil {
		return false
	}
	c.cur = next.hold()
	return true
}

// Prev moves to the previous Valid key. It trusts the node's backward link
// if it still points back at a node whose forward link reaches the current
// position; otherwise it re-derives the predecessor by re-walking from the
// head (see doc.go for the reverse-iteration approach).
func (c *Cursor) Prev() bool {
	if c.cur == nil {
		return false
	}
	target := c.cur.key
	prev := c.cur.back.Load()
	if prev == nil || prev.isDeleted() || !stillLinksTo(prev, c.cur) {
		prev = c.list.predecessorOf(target)
	}
	for prev != nil && prev != c.list.head && prev.isDeleted() {
		prev = c.list.predecessorOf(prev.key)
	}
	c.release()
	if prev == nil || prev == c.list.head {
		c.cur = nil
		return false
	}
	c.cur = prev.hold()
	return true
}

func stillLinksTo(prev, node *Node) bool {
	succ := prev.next[0].Load()
	return succ == node
}

// predecessorOf re-walks from the head to find the Valid node immediately
// before key, used when a backward link is stale.
func (s *Skiplist) predecessorOf(key []byte) *Node {
	pred := s.head
	curr := pred.next[0].Load()
	var last *Node
	for curr != nil && less(curr.key, key) {
		if !curr.isDeleted() {
			last = curr
		}
		curr = curr.next[0].Load()
	}
	if last == nil {
		return s.head
	}
	return last
}

// Valid reports whether the cursor is positioned on a node.
func (c *Cursor) Valid() bool { return c.cur != nil }

// Key returns the key at the cursor's current position. Only valid when
// Valid() is true.
func (c *Cursor) Key() []byte {
	if c.cur == nil {
		return nil
	}
	return c.cur.key
}

// Value returns the value handle at the cursor's current position.
func (c *Cursor) Value() any {
	if c.cur == nil {
		return nil
	}
	return c.cur.Value()
}

func (c *Cursor) release() {
	if c.cur != nil {
		c.cur.Release()
	}
}

// Close releases the cursor's held reference.
func (c *Cursor) Close() {
	c.release()
	c.cur = nil
}
