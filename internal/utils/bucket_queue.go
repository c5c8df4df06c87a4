package utils

// BucketQueue is a MergeQueue specialized for small dense rank spaces: one
// FIFO bucket per rank and a cursor at the lowest non-empty bucket. Pushes
// arrive in ascending position order within a rank, so FIFO order per bucket
// preserves the leftmost tie-break without sorting.
type BucketQueue struct {
	buckets    [][]MergeCand
	current    int
	totalCount int
}

// NewBucketQueue returns a queue sized for ranks up to maxRank.
func NewBucketQueue(maxRank int) *BucketQueue {
	if maxRank < 0 {
		maxRank = 0
	}
	return &BucketQueue{
		buckets: make([][]MergeCand, maxRank+1),
	}
}

func (bq *BucketQueue) Len() int {
	return bq.totalCount
}

func (bq *BucketQueue) Push(c MergeCand) {
	rank := int(c.Rank)
	if rank >= len(bq.buckets) {
		newBuckets := make([][]MergeCand, rank+1)
		copy(newBuckets, bq.buckets)
		bq.buckets = newBuckets
	}

	bq.buckets[rank] = append(bq.buckets[rank], c)
	bq.totalCount++

	if bq.totalCount == 1 || rank < bq.current {
		bq.current = rank
	}
}

func (bq *BucketQueue) Pop() (MergeCand, bool) {
	if bq.totalCount == 0 {
		return MergeCand{}, false
	}

	for bq.current < len(bq.buckets) && len(bq.buckets[bq.current]) == 0 {
		bq.current++
	}
	if bq.current >= len(bq.buckets) {
		bq.current = 0
		return MergeCand{}, false
	}

	bucket := bq.buckets[bq.current]
	c := bucket[0]
	bq.buckets[bq.current] = bucket[1:]
	bq.totalCount--
	return c, true
}
