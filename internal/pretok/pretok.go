// Package pretok splits raw corpus bytes into chunks that merges must not
// cross. A rule is either a PCRE-style regular expression whose matches are
// the chunks, or a set of split bytes each of which opens a new chunk.
package pretok

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Mode selects how a Rule delimits chunks.
type Mode int

const (
	// ModeSplit marks a set of byte values as hard chunk boundaries.
	ModeSplit Mode = iota
	// ModeRegex treats each regex match as one chunk; bytes between
	// matches are discarded.
	ModeRegex
)

const (
	regexPrefix = "regex:"
	splitPrefix = "split:"
)

// Span is a half-open byte range [Start, End) into the input.
type Span struct {
	Start, End int
}

// Rule is a configured chunking rule. Rules are immutable and safe for
// concurrent use.
type Rule struct {
	mode   Mode
	source string
	re     *regexp2.Regexp
	split  [256]bool
}

// Regex compiles pattern into a regex-mode rule. Patterns are matched with
// multiline and case-insensitive semantics. Multi-line patterns cannot be
// stored in the single-line model header and are rejected.
func Regex(pattern string) (*Rule, error) {
	if strings.ContainsAny(pattern, "\r\n") {
		return nil, errors.New("pretok: regex pattern must be a single line")
	}
	re, err := regexp2.Compile(pattern, regexp2.Multiline|regexp2.IgnoreCase)
	if err != nil {
		return nil, errors.Wrap(err, "pretok: compiling pattern")
	}
	return &Rule{mode: ModeRegex, source: pattern, re: re}, nil
}

// SplitBytes returns a split-mode rule: a chunk boundary is inserted before
// every occurrence of each byte in letters. An empty set yields one chunk
// per input.
func SplitBytes(letters string) *Rule {
	r := &Rule{mode: ModeSplit, source: letters}
	for i := 0; i < len(letters); i++ {
		r.split[letters[i]] = true
	}
	return r
}

// Parse reads the rule line of a model file. Lines written by Line carry a
// mode prefix; a bare line is read as a raw split-byte string, the format of
// older models.
func Parse(line string) (*Rule, error) {
	switch {
	case strings.HasPrefix(line, regexPrefix):
		return Regex(line[len(regexPrefix):])
	case strings.HasPrefix(line, splitPrefix):
		body := line[len(splitPrefix):]
		if strings.HasPrefix(body, `"`) {
			unquoted, err := strconv.Unquote(body)
			if err != nil {
				return nil, errors.Wrap(err, "pretok: malformed split rule")
			}
			body = unquoted
		}
		return SplitBytes(body), nil
	default:
		return SplitBytes(line), nil
	}
}

// Line renders the rule as the single header line of a model file. Split
// bytes are quoted so sets containing newlines survive the line-oriented
// format.
func (r *Rule) Line() string {
	if r.mode == ModeRegex {
		return regexPrefix + r.source
	}
	return splitPrefix + strconv.Quote(r.source)
}

// Mode returns the rule's chunking mode.
func (r *Rule) Mode() Mode {
	return r.mode
}

// Source returns the pattern or split-byte string the rule was built from.
func (r *Rule) Source() string {
	return r.source
}

// Chunks maps data to chunk spans in input order. In regex mode with more
// than one worker and enough input, matching fans out over byte ranges; a
// match straddling a partition boundary can be lost, which trades a sliver
// of accuracy for matching speed.
func (r *Rule) Chunks(data []byte, workers int) ([]Span, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if r.mode == ModeSplit {
		return r.splitChunks(data), nil
	}
	if workers > 1 && len(data) > 2*workers {
		return r.parallelMatch(data, workers)
	}
	return r.match(data, 0)
}

func (r *Rule) splitChunks(data []byte) []Span {
	spans := make([]Span, 0, 16)
	start := 0
	for i, c := range data {
		if r.split[c] && i > start {
			spans = append(spans, Span{start, i})
			start = i
		}
	}
	return append(spans, Span{start, len(data)})
}

// match runs the pattern over data and returns match spans offset by base.
// Bytes are widened 1:1 into runes so match indices are byte offsets and
// arbitrary binary input round-trips; patterns therefore see Latin-1, not
// UTF-8.
func (r *Rule) match(data []byte, base int) ([]Span, error) {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}

	var spans []Span
	m, err := r.re.FindRunesMatch(runes)
	for m != nil {
		if m.Length > 0 {
			spans = append(spans, Span{base + m.Index, base + m.Index + m.Length})
		}
		m, err = r.re.FindNextMatch(m)
	}
	if err != nil {
		return nil, errors.Wrap(err, "pretok: matching")
	}
	return spans, nil
}

func (r *Rule) parallelMatch(data []byte, workers int) ([]Span, error) {
	parts := make([][]Span, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		start := len(data) * w / workers
		end := len(data) * (w + 1) / workers
		g.Go(func() error {
			spans, err := r.match(data[start:end], start)
			parts[w] = spans
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stitch in worker order. A worker's first match that overlaps the
	// previous worker's last emitted match is a re-discovery of the same
	// region and is dropped.
	var spans []Span
	for _, part := range parts {
		if len(part) > 0 && len(spans) > 0 && part[0].Start < spans[len(spans)-1].End {
			part = part[1:]
		}
		spans = append(spans, part...)
	}
	return spans, nil
}
