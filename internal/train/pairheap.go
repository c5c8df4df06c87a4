package train

// Pair is an ordered pair of adjacent token ids.
type Pair struct {
	A, B int32
}

// Entry is one indexed-heap slot: the pair it stands for, the set of stream
// positions where the pair currently begins, and the entry's index in the
// heap array. The heap key is the cardinality of the position set.
type Entry struct {
	pair      Pair
	idx       int
	positions map[int32]struct{}
}

// Pair returns the pair this entry counts.
func (e *Entry) Pair() Pair {
	return e.pair
}

// Count returns the number of indexed occurrences.
func (e *Entry) Count() int {
	return len(e.positions)
}

// PairHeap is a binary max-heap over pair occurrence counts with a back-index
// from pair to entry. Entries carry their heap index so a single position
// update sifts only the affected entry. Entries whose position set drains to
// zero are kept; they sink below every entry that still has occurrences and
// are either pruned by Truncate or, once no such entry is left, popped like
// any other entry.
type PairHeap struct {
	list    *List
	entries []*Entry
	byPair  map[Pair]*Entry
}

// NewPairHeap returns an empty heap indexing pairs of the given stream.
func NewPairHeap(l *List) *PairHeap {
	return &PairHeap{
		list:   l,
		byPair: make(map[Pair]*Entry),
	}
}

// Len returns the number of entries currently in the heap array.
func (h *PairHeap) Len() int {
	return len(h.entries)
}

func (h *PairHeap) swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].idx = i
	h.entries[j].idx = j
}

func (h *PairHeap) siftUp(e *Entry) {
	for e.idx > 0 {
		parent := h.entries[(e.idx-1)/2]
		if parent.Count() >= e.Count() {
			break
		}
		h.swap(parent.idx, e.idx)
	}
}

func (h *PairHeap) siftDown(e *Entry) {
	for {
		left := e.idx*2 + 1
		if left >= len(h.entries) {
			break
		}

		biggest := h.entries[left]
		if right := left + 1; right < len(h.entries) && h.entries[right].Count() > biggest.Count() {
			biggest = h.entries[right]
		}

		if biggest.Count() <= e.Count() {
			break
		}
		h.swap(biggest.idx, e.idx)
	}
}

// Build heapifies the array bottom-up in O(n). Call it once after seeding the
// heap with AddPositionNoSift over the whole stream.
func (h *PairHeap) Build() {
	for i := len(h.entries)/2 - 1; i >= 0; i-- {
		h.siftDown(h.entries[i])
	}
}

// pairAt resolves the pair beginning at n, rejecting positions that have no
// successor or touch the boundary sentinel on either side.
func (h *PairHeap) pairAt(n int32) (Pair, bool) {
	if n == nilHandle {
		return Pair{}, false
	}
	next := h.list.Next(n)
	if next == nilHandle {
		return Pair{}, false
	}
	a, b := h.list.Value(n), h.list.Value(next)
	if a == Boundary || b == Boundary {
		return Pair{}, false
	}
	return Pair{a, b}, true
}

// AddPositionNoSift indexes the pair beginning at n without restoring heap
// order, creating the entry at the array tail if the pair is new. Returns the
// touched entry, or nil when the position does not form an indexable pair.
func (h *PairHeap) AddPositionNoSift(n int32) *Entry {
	p, ok := h.pairAt(n)
	if !ok {
		return nil
	}

	e, ok := h.byPair[p]
	if !ok {
		e = &Entry{
			pair:      p,
			idx:       len(h.entries),
			positions: make(map[int32]struct{}, 1),
		}
		h.entries = append(h.entries, e)
		h.byPair[p] = e
	}
	e.positions[n] = struct{}{}
	return e
}

// AddPosition indexes the pair beginning at n and restores heap order.
func (h *PairHeap) AddPosition(n int32) {
	if e := h.AddPositionNoSift(n); e != nil {
		h.siftUp(e)
	}
}

// RemovePosition un-indexes the pair beginning at n. A no-op when the
// position does not form an indexable pair or the pair is not tracked.
func (h *PairHeap) RemovePosition(n int32) {
	p, ok := h.pairAt(n)
	if !ok {
		return
	}
	e, ok := h.byPair[p]
	if !ok {
		return
	}

	delete(e.positions, n)
	if e.idx < len(h.entries) && h.entries[e.idx] == e {
		h.siftDown(e)
	}
}

// PopTop removes and returns the maximum-count entry. The pair stays in the
// back-index until Drop so that position updates during the merge of this
// pair still resolve to it.
func (h *PairHeap) PopTop() *Entry {
	top := h.entries[0]
	last := len(h.entries) - 1
	h.swap(0, last)
	h.entries = h.entries[:last]
	if len(h.entries) > 0 {
		h.siftDown(h.entries[0])
	}
	return top
}

// Drop erases the pair-to-entry mapping of a popped entry.
func (h *PairHeap) Drop(e *Entry) {
	delete(h.byPair, e.pair)
}

// Truncate keeps only the first k array slots. Once the merge budget is
// fixed, pairs past that capacity cannot reach the top before being
// re-indexed through AddPosition, so the tail may be discarded to bound
// memory.
func (h *PairHeap) Truncate(k int) {
	if k < 0 || len(h.entries) <= k {
		return
	}
	for i := k; i < len(h.entries); i++ {
		delete(h.byPair, h.entries[i].pair)
		h.entries[i] = nil
	}
	h.entries = h.entries[:k]
}
