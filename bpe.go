// Package bpe implements a byte-level Byte Pair Encoding tokenizer: it
// learns a merge table from a corpus, encodes text into token ids, decodes
// ids back into text, and reads/writes the trained model as a small
// line-oriented file.
//
// Ids 0..255 are the literal bytes; id 256+k is defined by the k-th learned
// merge. Id 0 doubles as the chunk-boundary sentinel during training, so a
// corpus containing NUL bytes cannot be represented exactly.
package bpe

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/amosdevstudio/bpe/internal/pretok"
	"github.com/amosdevstudio/bpe/internal/train"
)

var (
	// ErrConfig reports an unusable tokenizer configuration.
	ErrConfig = errors.New("bpe: invalid configuration")
	// ErrModelFormat reports a malformed model file.
	ErrModelFormat = errors.New("bpe: malformed model file")
)

// Tokenizer holds a pre-tokenizer rule plus the learned merge table and the
// vocabulary derived from it. A Tokenizer is safe for concurrent Encode and
// Decode; Fit, Save and Load must not race with other calls.
type Tokenizer struct {
	rule      *pretok.Rule
	vocabSize int
	merges    []train.Pair
	vocab     [][]byte

	ranks *pairLookup

	cacheMu sync.RWMutex
	cache   map[string][]int32
}

// NewWithRegex returns an untrained tokenizer chunking its input with a
// PCRE-style pattern; each match is one chunk and bytes between matches are
// discarded.
func NewWithRegex(pattern string) (*Tokenizer, error) {
	rule, err := pretok.Regex(pattern)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "%v", err)
	}
	return newTokenizer(rule), nil
}

// NewWithSplitBytes returns an untrained tokenizer that opens a new chunk
// before every occurrence of each byte in letters. An empty set keeps the
// whole input as one chunk.
func NewWithSplitBytes(letters string) *Tokenizer {
	return newTokenizer(pretok.SplitBytes(letters))
}

func newTokenizer(rule *pretok.Rule) *Tokenizer {
	t := &Tokenizer{
		rule:      rule,
		vocabSize: int(train.FirstMergedID),
	}
	t.rebuild()
	return t
}

// rebuild derives the vocabulary and rank tables from the merge list and
// resets the encode cache.
func (t *Tokenizer) rebuild() {
	t.vocabSize = int(train.FirstMergedID) + len(t.merges)

	vocab := make([][]byte, t.vocabSize)
	for i := 0; i < int(train.FirstMergedID); i++ {
		vocab[i] = []byte{byte(i)}
	}
	for k, m := range t.merges {
		left, right := vocab[m.A], vocab[m.B]
		entry := make([]byte, 0, len(left)+len(right))
		vocab[int(train.FirstMergedID)+k] = append(append(entry, left...), right...)
	}
	t.vocab = vocab

	t.ranks = newPairLookup(t.merges, t.vocabSize)

	t.cacheMu.Lock()
	t.cache = make(map[string][]int32)
	t.cacheMu.Unlock()
}

// VocabSize returns the number of defined token ids.
func (t *Tokenizer) VocabSize() int {
	return t.vocabSize
}

// Merges returns the learned merge table in learned order.
func (t *Tokenizer) Merges() [][2]int32 {
	out := make([][2]int32, len(t.merges))
	for i, m := range t.merges {
		out[i] = [2]int32{m.A, m.B}
	}
	return out
}

// TokenBytes returns the byte string a token id stands for.
func (t *Tokenizer) TokenBytes(id int32) ([]byte, bool) {
	if id < 0 || int(id) >= len(t.vocab) {
		return nil, false
	}
	return t.vocab[id], true
}

// Decode concatenates the byte strings of ids.
func (t *Tokenizer) Decode(ids []int32) (string, error) {
	total := 0
	for _, id := range ids {
		if id < 0 || int(id) >= len(t.vocab) {
			return "", errors.Errorf("bpe: token id %d out of range [0, %d)", id, len(t.vocab))
		}
		total += len(t.vocab[id])
	}

	out := make([]byte, 0, total)
	for _, id := range ids {
		out = append(out, t.vocab[id]...)
	}
	return string(out), nil
}
