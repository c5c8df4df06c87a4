package bpe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func corpusFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fitOn(t *testing.T, tok *Tokenizer, vocabSize int, corpus string, opts ...FitOption) int {
	t.Helper()
	effective, err := tok.Fit(vocabSize, corpusFile(t, corpus), opts...)
	require.NoError(t, err)
	return effective
}

func TestFitClassicCorpus(t *testing.T) {
	tok := NewWithSplitBytes("")
	effective := fitOn(t, tok, 259, "aaabdaaabac")

	require.Equal(t, 259, effective)
	require.Equal(t, [][2]int32{{97, 97}, {97, 98}, {256, 257}}, tok.Merges())

	ids, err := tok.Encode("aaabdaaabac")
	require.NoError(t, err)
	require.Equal(t, []int32{258, 100, 258, 97, 99}, ids)

	decoded, err := tok.Decode(ids)
	require.NoError(t, err)
	require.Equal(t, "aaabdaaabac", decoded)
}

func TestFitEarlyExit(t *testing.T) {
	tok := NewWithSplitBytes("")
	effective := fitOn(t, tok, 1024, "ab")

	require.Equal(t, 257, effective)
	require.Equal(t, [][2]int32{{97, 98}}, tok.Merges())
}

func TestFitWordBoundaries(t *testing.T) {
	tok := NewWithSplitBytes(" ")
	fitOn(t, tok, 260, "hug pug pun bun hug")

	merges := tok.Merges()
	require.NotEmpty(t, merges)
	require.Equal(t, [2]int32{'u', 'g'}, merges[0])
	for _, m := range merges {
		require.NotEqual(t, int32(' '), m[1], "no token ever merges onto a space")
		require.NotEqual(t, int32(0), m[0])
		require.NotEqual(t, int32(0), m[1])
	}
}

func TestFitBoundaryIsolation(t *testing.T) {
	tok := NewWithSplitBytes(" ")
	effective := fitOn(t, tok, 257, "ab ab")

	require.Equal(t, 257, effective)
	require.Equal(t, [][2]int32{{97, 98}}, tok.Merges())
}

func TestFitRejectsTinyVocab(t *testing.T) {
	tok := NewWithSplitBytes("")
	_, err := tok.Fit(100, corpusFile(t, "whatever"))
	require.ErrorIs(t, err, ErrConfig)
}

func TestFitMissingCorpus(t *testing.T) {
	tok := NewWithSplitBytes("")
	_, err := tok.Fit(300, filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestFitClearsPriorMerges(t *testing.T) {
	tok := NewWithSplitBytes("")
	fitOn(t, tok, 300, "aaaaaaaabbbbcccc")
	first := tok.Merges()

	fitOn(t, tok, 258, "xyxyxyxy")
	require.Equal(t, [][2]int32{{'x', 'y'}, {256, 256}}, tok.Merges())
	require.NotEqual(t, first, tok.Merges())
}

func TestFitBulkStrategy(t *testing.T) {
	tok := NewWithSplitBytes("")
	effective := fitOn(t, tok, 258, "xyxyxyxy", WithBulkStrategy(), WithWorkers(2))

	require.Equal(t, 258, effective)
	require.Equal(t, [][2]int32{{'x', 'y'}, {256, 256}}, tok.Merges())
}

func TestFitWithRegexRule(t *testing.T) {
	tok, err := NewWithRegex(`[a-z]+`)
	require.NoError(t, err)

	// Spaces fall between matches and are simply not part of any chunk.
	fitOn(t, tok, 259, "hug hug hug pug")
	for _, m := range tok.Merges() {
		require.NotEqual(t, int32(' '), m[0])
		require.NotEqual(t, int32(' '), m[1])
	}

	ids, err := tok.Encode("hug hug")
	require.NoError(t, err)
	decoded, err := tok.Decode(ids)
	require.NoError(t, err)
	require.Equal(t, "hughug", decoded, "bytes outside matches are discarded")
}

func TestEncodeSingleByte(t *testing.T) {
	tok := NewWithSplitBytes("")
	ids, err := tok.Encode("A")
	require.NoError(t, err)
	require.Equal(t, []int32{65}, ids)

	decoded, err := tok.Decode([]int32{65})
	require.NoError(t, err)
	require.Equal(t, "A", decoded)
}

func TestEncodeEmpty(t *testing.T) {
	tok := NewWithSplitBytes("")
	ids, err := tok.Encode("")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestEncodeUntrainedIsByteIdentity(t *testing.T) {
	tok := NewWithSplitBytes("")
	ids, err := tok.Encode("hi!")
	require.NoError(t, err)
	require.Equal(t, []int32{104, 105, 33}, ids)
}

func TestRoundTrip(t *testing.T) {
	tok := NewWithSplitBytes(" ")
	fitOn(t, tok, 300, "low lower lowest newer newest wider wide widest low low")

	inputs := []string{
		"low",
		"lower newest",
		"unseen words entirely",
		"x",
		"wideawake",
	}
	for _, in := range inputs {
		ids, err := tok.Encode(in)
		require.NoError(t, err)
		decoded, err := tok.Decode(ids)
		require.NoError(t, err)
		require.Equal(t, in, decoded)
	}
}

func TestVocabularyClosure(t *testing.T) {
	tok := NewWithSplitBytes(" ")
	fitOn(t, tok, 320, "the quick brown fox jumps over the lazy dog the quick fox")

	for k, m := range tok.Merges() {
		id := int32(256 + k)
		require.Less(t, m[0], id)
		require.Less(t, m[1], id)

		left, ok := tok.TokenBytes(m[0])
		require.True(t, ok)
		right, ok := tok.TokenBytes(m[1])
		require.True(t, ok)
		full, ok := tok.TokenBytes(id)
		require.True(t, ok)
		require.Equal(t, string(full), string(left)+string(right))
	}
}

func TestDecodeRejectsUnknownIDs(t *testing.T) {
	tok := NewWithSplitBytes("")
	_, err := tok.Decode([]int32{256})
	require.Error(t, err)
	_, err = tok.Decode([]int32{-1})
	require.Error(t, err)
}

func TestEncodeDeterministicAcrossCalls(t *testing.T) {
	tok := NewWithSplitBytes(" ")
	fitOn(t, tok, 300, "banana bandana banana bandana banana")

	first, err := tok.Encode("banana bandana")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := tok.Encode("banana bandana")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestEncodeCacheReusesChunks(t *testing.T) {
	tok := NewWithSplitBytes(" ")
	fitOn(t, tok, 280, "hug hug hug pug")

	ids, err := tok.Encode("hug hug hug")
	require.NoError(t, err)

	tok.cacheMu.RLock()
	cached := len(tok.cache)
	tok.cacheMu.RUnlock()
	require.Greater(t, cached, 0, "encode should memoize chunks")

	again, err := tok.Encode("hug hug hug")
	require.NoError(t, err)
	require.Equal(t, ids, again)
}

func TestFitResetsCache(t *testing.T) {
	tok := NewWithSplitBytes("")
	fitOn(t, tok, 258, "xyxyxyxy")
	_, err := tok.Encode("xyxy")
	require.NoError(t, err)

	fitOn(t, tok, 258, "ababab")
	tok.cacheMu.RLock()
	cached := len(tok.cache)
	tok.cacheMu.RUnlock()
	require.Zero(t, cached)

	ids, err := tok.Encode("xyxy")
	require.NoError(t, err)
	require.Equal(t, []int32{120, 121, 120, 121}, ids, "old merges must be gone")
}
