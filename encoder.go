package bpe

import (
	"github.com/amosdevstudio/bpe/internal/train"
	"github.com/amosdevstudio/bpe/internal/utils"
)

// maxCacheEntries caps the chunk memo; a corpus with more distinct chunks
// than this simply stops benefiting from the cache.
const maxCacheEntries = 1 << 16

// Encode maps text to token ids. The input is chunked by the configured
// rule, each chunk is encoded independently by applying learned merges in
// rank order, and the per-chunk ids are concatenated. In regex mode, bytes
// the pattern does not match are dropped.
func (t *Tokenizer) Encode(text string) ([]int32, error) {
	data := []byte(text)
	spans, err := t.rule.Chunks(data, 1)
	if err != nil {
		return nil, err
	}

	out := make([]int32, 0, len(data)/2+1)
	for _, sp := range spans {
		out = append(out, t.encodeChunk(data[sp.Start:sp.End])...)
	}
	return out, nil
}

func (t *Tokenizer) encodeChunk(chunk []byte) []int32 {
	if len(chunk) == 0 {
		return nil
	}

	t.cacheMu.RLock()
	cached, ok := t.cache[string(chunk)]
	t.cacheMu.RUnlock()
	if ok {
		return cached
	}

	ids := t.mergeChunk(chunk)

	t.cacheMu.Lock()
	if len(t.cache) < maxCacheEntries {
		t.cache[string(chunk)] = ids
	}
	t.cacheMu.Unlock()
	return ids
}

// mergeChunk seeds one token per byte and repeatedly applies the
// lowest-ranked applicable merge. Slots live in prev/next index arrays
// forming a doubly-linked list; queued candidates snapshot per-slot versions
// and are discarded as stale once either slot has changed under them.
// Rank-minimum ordering, not left-to-right first-match, is what makes encode
// agree with how the merges were learned.
func (t *Tokenizer) mergeChunk(chunk []byte) []int32 {
	n := len(chunk)
	tokens := make([]int32, n)
	for i, b := range chunk {
		tokens[i] = int32(b)
	}
	if len(t.merges) == 0 || n < 2 {
		return tokens
	}

	prev := make([]int32, n)
	next := make([]int32, n)
	for i := 0; i < n; i++ {
		prev[i] = int32(i) - 1
		next[i] = int32(i) + 1
	}
	next[n-1] = -1

	version := make([]uint32, n)

	q := utils.NewMergeQueue(t.ranks.maxRank)

	pushIfMergeable := func(i int32) {
		j := next[i]
		if j == -1 {
			return
		}
		if rank, ok := t.ranks.Lookup(tokens[i], tokens[j]); ok {
			q.Push(utils.MergeCand{
				Rank: rank,
				Pos:  i,
				VerL: version[i],
				VerR: version[j],
			})
		}
	}

	for i := int32(0); i != -1 && next[i] != -1; i = next[i] {
		pushIfMergeable(i)
	}

	for {
		c, ok := q.Pop()
		if !ok {
			break
		}

		i := c.Pos
		j := next[i]
		if j == -1 {
			continue
		}
		if version[i] != c.VerL || version[j] != c.VerR {
			continue
		}

		rank, ok := t.ranks.Lookup(tokens[i], tokens[j])
		if !ok || rank != c.Rank {
			continue
		}

		tokens[i] = train.FirstMergedID + rank

		nj := next[j]
		next[i] = nj
		if nj != -1 {
			prev[nj] = i
		}
		prev[j], next[j] = -1, -1

		version[i]++
		version[j]++

		if pi := prev[i]; pi != -1 {
			pushIfMergeable(pi)
		}
		pushIfMergeable(i)
	}

	out := make([]int32, 0, n)
	for i := int32(0); i != -1; i = next[i] {
		out = append(out, tokens[i])
	}
	return out
}
