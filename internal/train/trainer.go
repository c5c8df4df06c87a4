package train

import (
	"log/slog"
	"slices"
)

// Boundary is the reserved token id acting as a hard chunk boundary. A pair
// touching it on either side is never indexed, so no merge crosses it. It
// doubles as the id of byte 0x00, which therefore cannot be learned into a
// merge.
const Boundary int32 = 0

// FirstMergedID is the id assigned to the first learned merge; ids below it
// are literal bytes.
const FirstMergedID int32 = 256

// Options configures a training run.
type Options struct {
	// TruncateHeap prunes the heap to the merge budget after the initial
	// scan and after every merge, bounding memory on large corpora.
	TruncateHeap bool
	// Progress, when set, is invoked after each learned merge with the
	// number of merges learned so far and the requested total.
	Progress func(learned, target int)
}

// Result is the outcome of a training run.
type Result struct {
	// Merges holds the learned pairs in order; merge k defines id 256+k.
	Merges []Pair
	// Exhausted is set when the pair heap drained before the requested
	// vocabulary size was reached.
	Exhausted bool
}

// Trainer drives the merge loop over a populated token stream.
type Trainer struct {
	list   *List
	heap   *PairHeap
	target int
	opts   Options

	merges  []Pair
	scratch []int32
}

// NewTrainer scans the stream, builds the occurrence-indexed heap and
// prepares a run targeting the given vocabulary size.
func NewTrainer(list *List, vocabSize int, opts Options) *Trainer {
	heap := NewPairHeap(list)
	for n := list.Head(); n != nilHandle && list.Next(n) != nilHandle; n = list.Next(n) {
		heap.AddPositionNoSift(n)
	}
	heap.Build()

	target := vocabSize - int(FirstMergedID)
	if opts.TruncateHeap {
		heap.Truncate(target)
	}

	return &Trainer{
		list:   list,
		heap:   heap,
		target: target,
		opts:   opts,
		merges: make([]Pair, 0, target),
	}
}

// Run learns merges until the target vocabulary size is reached or the heap
// drains.
func (tr *Trainer) Run() Result {
	for len(tr.merges) < tr.target {
		if !tr.step() {
			slog.Warn("pair heap exhausted before requested vocabulary size",
				"requested", tr.target+int(FirstMergedID),
				"effective", len(tr.merges)+int(FirstMergedID))
			return Result{Merges: tr.merges, Exhausted: true}
		}
	}
	return Result{Merges: tr.merges}
}

// step learns one merge. It reports false when no pair remains.
func (tr *Trainer) step() bool {
	if tr.heap.Len() == 0 {
		return false
	}

	id := FirstMergedID + int32(len(tr.merges))
	top := tr.heap.PopTop()

	// Snapshot the occurrence set in stream order. Merging one occurrence
	// can invalidate an overlapping one (a self-repeating pair shares its
	// middle node), so each position is re-validated before it is merged.
	tr.scratch = tr.scratch[:0]
	for n := range top.positions {
		tr.scratch = append(tr.scratch, n)
	}
	slices.Sort(tr.scratch)

	for _, n := range tr.scratch {
		if !tr.list.Alive(n) {
			continue
		}
		q := tr.list.Next(n)
		if q == nilHandle || tr.list.Value(n) != top.pair.A || tr.list.Value(q) != top.pair.B {
			continue
		}

		p := tr.list.Prev(n)
		tr.heap.RemovePosition(p)
		tr.heap.RemovePosition(q)

		tr.list.SetValue(n, id)
		tr.list.Remove(q)

		tr.heap.AddPosition(p)
		tr.heap.AddPosition(n)
	}

	tr.merges = append(tr.merges, top.pair)
	tr.heap.Drop(top)

	if tr.opts.Progress != nil {
		tr.opts.Progress(len(tr.merges), tr.target)
	}
	if id%100 == 0 {
		slog.Debug("merge milestone", "id", id, "heap", tr.heap.Len())
	}

	if tr.opts.TruncateHeap {
		tr.heap.Truncate(tr.target)
	}
	return true
}

// Run trains merges on a populated stream until vocabSize ids exist or no
// pair remains.
func Run(list *List, vocabSize int, opts Options) Result {
	return NewTrainer(list, vocabSize, opts).Run()
}
