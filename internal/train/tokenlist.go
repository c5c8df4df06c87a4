package train

// nilHandle marks the absence of a neighbor. Handles index into the arena
// backing a List and stay valid until the node is removed.
const nilHandle = int32(-1)

type node struct {
	val  int32
	prev int32
	next int32
}

// List is the corpus token stream: a doubly-linked sequence of token ids
// backed by a flat arena. Neighbor links are 32-bit handles into the arena,
// so occurrence indexes can hold positions without keeping pointers into
// memory that a removal would free. Removed slots go onto a freelist.
type List struct {
	nodes []node
	free  []int32
	head  int32
	tail  int32
	size  int
}

// NewList returns an empty list with room for sizeHint nodes.
func NewList(sizeHint int) *List {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &List{
		nodes: make([]node, 0, sizeHint),
		head:  nilHandle,
		tail:  nilHandle,
	}
}

func (l *List) alloc(v int32) int32 {
	if n := len(l.free); n > 0 {
		h := l.free[n-1]
		l.free = l.free[:n-1]
		l.nodes[h] = node{val: v, prev: nilHandle, next: nilHandle}
		return h
	}
	l.nodes = append(l.nodes, node{val: v, prev: nilHandle, next: nilHandle})
	return int32(len(l.nodes) - 1)
}

// Append adds a node carrying v at the tail and returns its handle.
func (l *List) Append(v int32) int32 {
	h := l.alloc(v)
	if l.size == 0 {
		l.head = h
		l.tail = h
		l.size = 1
		return h
	}

	l.nodes[l.tail].next = h
	l.nodes[h].prev = l.tail
	l.tail = h
	l.size++
	return h
}

// Remove unlinks the node at h and recycles its slot. Neighbor handles keep
// their identity; only h becomes dead.
func (l *List) Remove(h int32) {
	n := l.nodes[h]
	if n.prev != nilHandle {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nilHandle {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}

	l.nodes[h] = node{val: -1, prev: nilHandle, next: nilHandle}
	l.free = append(l.free, h)
	l.size--
}

// Head returns the handle of the first node, or a handle for which Alive
// reports false when the list is empty.
func (l *List) Head() int32 {
	return l.head
}

// Next returns the successor handle of h, or nilHandle at the tail.
func (l *List) Next(h int32) int32 {
	return l.nodes[h].next
}

// Prev returns the predecessor handle of h, or nilHandle at the head.
func (l *List) Prev(h int32) int32 {
	return l.nodes[h].prev
}

// Value returns the token id stored at h.
func (l *List) Value(h int32) int32 {
	return l.nodes[h].val
}

// SetValue overwrites the token id stored at h.
func (l *List) SetValue(h, v int32) {
	l.nodes[h].val = v
}

// Alive reports whether h refers to a node still linked into the stream.
func (l *List) Alive(h int32) bool {
	return h != nilHandle && l.nodes[h].val >= 0
}

// Len returns the number of linked nodes.
func (l *List) Len() int {
	return l.size
}

// Values collects the stream into a slice, head to tail.
func (l *List) Values() []int32 {
	out := make([]int32, 0, l.size)
	for h := l.head; h != nilHandle; h = l.nodes[h].next {
		out = append(out, l.nodes[h].val)
	}
	return out
}
