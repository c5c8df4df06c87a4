package bpe

import (
	"log/slog"
	"os"
	"runtime"

	"github.com/pkg/errors"

	"github.com/amosdevstudio/bpe/internal/pretok"
	"github.com/amosdevstudio/bpe/internal/train"
)

type fitConfig struct {
	workers  int
	bulk     bool
	truncate bool
	progress func(learned, target int)
}

// FitOption adjusts a single Fit call.
type FitOption func(*fitConfig)

// WithWorkers sets the worker count for parallel pre-tokenization and, with
// the bulk strategy, the count and apply phases.
func WithWorkers(n int) FitOption {
	return func(c *fitConfig) { c.workers = n }
}

// WithBulkStrategy selects the recounting trainer instead of the incremental
// indexed-heap trainer.
func WithBulkStrategy() FitOption {
	return func(c *fitConfig) { c.bulk = true }
}

// WithoutTruncation keeps every pair entry in the training heap instead of
// pruning it to the merge budget each iteration. Uses more memory; counts
// for pruned-and-rediscovered pairs stay exact.
func WithoutTruncation() FitOption {
	return func(c *fitConfig) { c.truncate = false }
}

// WithProgress registers a callback invoked after every learned merge with
// the number learned so far and the requested total.
func WithProgress(fn func(learned, target int)) FitOption {
	return func(c *fitConfig) { c.progress = fn }
}

// Fit trains the merge table from the corpus at corpusPath, replacing any
// prior merges, and returns the effective vocabulary size. The result is
// smaller than requested when the corpus runs out of mergeable pairs first;
// that is reported as a warning, not an error.
func (t *Tokenizer) Fit(vocabSize int, corpusPath string, opts ...FitOption) (int, error) {
	cfg := fitConfig{
		workers:  runtime.NumCPU(),
		truncate: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if vocabSize < int(train.FirstMergedID) {
		return 0, errors.Wrapf(ErrConfig, "vocabulary size %d below %d", vocabSize, train.FirstMergedID)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	data, err := os.ReadFile(corpusPath)
	if err != nil {
		return 0, errors.Wrap(err, "bpe: reading corpus")
	}

	spans, err := t.rule.Chunks(data, cfg.workers)
	if err != nil {
		return 0, err
	}

	slog.Info("fitting", "corpus", corpusPath, "bytes", len(data),
		"chunks", len(spans), "vocab", vocabSize, "workers", cfg.workers)

	var result train.Result
	if cfg.bulk {
		result = train.RunBulk(buildTokens(data, spans), vocabSize, train.BulkOptions{
			Workers:  cfg.workers,
			Progress: cfg.progress,
		})
	} else {
		result = train.Run(buildStream(data, spans), vocabSize, train.Options{
			TruncateHeap: cfg.truncate,
			Progress:     cfg.progress,
		})
	}

	t.merges = result.Merges
	t.rebuild()
	return t.vocabSize, nil
}

// buildStream lays the chunk spans out as a linked token stream with one
// boundary sentinel between consecutive chunks.
func buildStream(data []byte, spans []pretok.Span) *train.List {
	list := train.NewList(len(data) + len(spans))
	for i, sp := range spans {
		if i > 0 {
			list.Append(train.Boundary)
		}
		for _, b := range data[sp.Start:sp.End] {
			list.Append(int32(b))
		}
	}
	return list
}

// buildTokens is the flat-buffer equivalent of buildStream for the bulk
// trainer.
func buildTokens(data []byte, spans []pretok.Span) []int32 {
	tokens := make([]int32, 0, len(data)+len(spans))
	for i, sp := range spans {
		if i > 0 {
			tokens = append(tokens, train.Boundary)
		}
		for _, b := range data[sp.Start:sp.End] {
			tokens = append(tokens, int32(b))
		}
	}
	return tokens
}
