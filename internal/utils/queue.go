package utils

import (
	binaryheap "github.com/emirpasic/gods/v2/trees/binaryheap"
)

// MergeCand is a queued candidate merge site in the encode path: the left
// position of an adjacent pair and the rank of the merge that would fuse it.
// VerL/VerR snapshot the per-slot versions at push time; a candidate whose
// versions no longer match is stale and is skipped on pop.
type MergeCand struct {
	Rank int32 // lower wins
	Pos  int32 // left slot; lower wins on tie to enforce leftmost
	VerL uint32
	VerR uint32
}

// MergeQueue orders merge candidates by ascending rank, then ascending
// position.
type MergeQueue interface {
	Push(c MergeCand)
	Pop() (MergeCand, bool)
	Len() int
}

// bucketQueueMaxRank bounds the rank space for which the dense bucket queue
// is worth its footprint; larger rank spaces use the binary heap.
const bucketQueueMaxRank = 1 << 12

// NewMergeQueue picks a queue implementation for a merge table whose largest
// rank is maxRank.
func NewMergeQueue(maxRank int) MergeQueue {
	if maxRank < bucketQueueMaxRank {
		return NewBucketQueue(maxRank)
	}
	return newRankHeap()
}

type rankHeap struct {
	h *binaryheap.Heap[MergeCand]
}

func newRankHeap() *rankHeap {
	return &rankHeap{
		h: binaryheap.NewWith[MergeCand](func(a, b MergeCand) int {
			if a.Rank != b.Rank {
				return int(a.Rank) - int(b.Rank)
			}
			return int(a.Pos) - int(b.Pos)
		}),
	}
}

func (q *rankHeap) Push(c MergeCand) {
	q.h.Push(c)
}

func (q *rankHeap) Pop() (MergeCand, bool) {
	return q.h.Pop()
}

func (q *rankHeap) Len() int {
	return q.h.Size()
}
