package bpe

import "github.com/amosdevstudio/bpe/internal/train"

// fastLookupSize bounds the dense table: pairs whose ids both fall under it
// resolve with two array indexes, everything else falls back to a map.
const fastLookupSize = 2048

const noRank = int32(-1)

// pairLookup maps an adjacent id pair to the rank of the merge that fuses
// it. The merged id is always rank+256, so only the rank is stored.
type pairLookup struct {
	fast     [][]int32
	fastSize int32
	fallback map[uint64]int32
	maxRank  int
}

func packPair(a, b int32) uint64 {
	return uint64(uint32(a))<<32 | uint64(uint32(b))
}

func newPairLookup(merges []train.Pair, vocabSize int) *pairLookup {
	size := fastLookupSize
	if vocabSize < size {
		size = vocabSize
	}

	fast := make([][]int32, size)
	for i := range fast {
		row := make([]int32, size)
		for j := range row {
			row[j] = noRank
		}
		fast[i] = row
	}

	pl := &pairLookup{
		fast:     fast,
		fastSize: int32(size),
		fallback: make(map[uint64]int32),
		maxRank:  len(merges) - 1,
	}

	for rank, m := range merges {
		if m.A < pl.fastSize && m.B < pl.fastSize {
			fast[m.A][m.B] = int32(rank)
		} else {
			pl.fallback[packPair(m.A, m.B)] = int32(rank)
		}
	}
	return pl
}

// Lookup returns the merge rank for the pair (a, b).
func (pl *pairLookup) Lookup(a, b int32) (int32, bool) {
	if a >= 0 && a < pl.fastSize && b >= 0 && b < pl.fastSize {
		rank := pl.fast[a][b]
		return rank, rank != noRank
	}
	rank, ok := pl.fallback[packPair(a, b)]
	return rank, ok
}
