package train

import (
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BulkOptions configures the recounting trainer.
type BulkOptions struct {
	// Workers is the number of goroutines used for the count and apply
	// phases. Defaults to the number of CPUs.
	Workers int
	// Progress, when set, is invoked after each learned merge.
	Progress func(learned, target int)
}

// RunBulk trains merges by recounting every pair each iteration and applying
// the winning merge across the whole buffer. Simpler than the incremental
// heap and trivially parallel, at the price of a full pass per merge; use it
// when the corpus is small or workers are plentiful.
//
// Counting skips every other occurrence of a self-repeating pair so counts
// approximate the number of disjoint merge sites; the incremental trainer
// has no such bias because merging actually consumes positions.
//
// Ties on the occurrence count go to the lexicographically smallest pair, so
// runs are reproducible at any worker count.
func RunBulk(tokens []int32, vocabSize int, opts BulkOptions) Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	target := vocabSize - int(FirstMergedID)
	merges := make([]Pair, 0, target)

	for len(merges) < target {
		cuts := partition(tokens, workers)
		counts := countPairs(tokens, cuts)

		best, ok := argmax(counts)
		if !ok {
			slog.Warn("no pair left to merge",
				"requested", vocabSize,
				"effective", len(merges)+int(FirstMergedID))
			return Result{Merges: merges, Exhausted: true}
		}

		id := FirstMergedID + int32(len(merges))
		tokens = applyMerge(tokens, cuts, best, id)
		merges = append(merges, best)

		if opts.Progress != nil {
			opts.Progress(len(merges), target)
		}
	}

	return Result{Merges: merges}
}

// partition slices [0, len) into per-worker cut points snapped forward to
// the next boundary sentinel. Pairs never contain the sentinel, so no
// mergeable pair straddles two slices and workers stay independent. A
// boundary-free buffer degenerates to a single slice.
func partition(tokens []int32, workers int) []int {
	cuts := make([]int, 0, workers+1)
	cuts = append(cuts, 0)
	for w := 1; w < workers; w++ {
		c := len(tokens) * w / workers
		if last := cuts[len(cuts)-1]; c < last {
			c = last
		}
		for c < len(tokens) && tokens[c] != Boundary {
			c++
		}
		cuts = append(cuts, c)
	}
	return append(cuts, len(tokens))
}

// countPairs fans the slices out to workers, each building a local pair map,
// and folds the locals into one map under a mutex. Integer addition
// commutes, so only the fold needs mutual exclusion.
func countPairs(tokens []int32, cuts []int) map[Pair]int {
	total := make(map[Pair]int)

	var mu sync.Mutex
	var g errgroup.Group
	for w := 0; w+1 < len(cuts); w++ {
		start, end := cuts[w], cuts[w+1]
		if end-start < 2 {
			continue
		}
		g.Go(func() error {
			local := make(map[Pair]int)
			selfRun := false
			for i := start; i+1 < end; i++ {
				a, b := tokens[i], tokens[i+1]
				if a == Boundary || b == Boundary {
					selfRun = false
					continue
				}
				if a == b && selfRun {
					// Overlapping occurrence of a self pair; only
					// every other site can actually merge.
					selfRun = false
					continue
				}
				local[Pair{a, b}]++
				selfRun = a == b
			}

			mu.Lock()
			for p, c := range local {
				total[p] += c
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return total
}

func argmax(counts map[Pair]int) (Pair, bool) {
	var best Pair
	bestCount := 0
	for p, c := range counts {
		if c > bestCount || (c == bestCount && less(p, best)) {
			best, bestCount = p, c
		}
	}
	return best, bestCount > 0
}

func less(a, b Pair) bool {
	if a.A != b.A {
		return a.A < b.A
	}
	return a.B < b.B
}

// applyMerge rewrites every occurrence of pair into id with a two-cursor
// sweep, one worker per slice, and compacts the slices afterwards. Workers
// only write inside their own slice; the barrier is the group join.
func applyMerge(tokens []int32, cuts []int, pair Pair, id int32) []int32 {
	workers := len(cuts) - 1
	lengths := make([]int, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			lengths[w] = mergeRange(tokens, cuts[w], cuts[w+1], pair, id)
			return nil
		})
	}
	g.Wait()

	out := tokens[:lengths[0]]
	for w := 1; w < workers; w++ {
		out = append(out, tokens[cuts[w]:cuts[w]+lengths[w]]...)
	}
	return out
}

// mergeRange applies one merge inside [start, end) in place and returns the
// compacted length. Read cursor r and write cursor w sweep together; a match
// writes the merged id and skips the right constituent.
func mergeRange(tokens []int32, start, end int, pair Pair, id int32) int {
	w := start
	for r := start; r < end; r++ {
		if r+1 < end && tokens[r] == pair.A && tokens[r+1] == pair.B {
			tokens[w] = id
			r++
		} else {
			tokens[w] = tokens[r]
		}
		w++
	}
	return w - start
}
