package bpe

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/amosdevstudio/bpe/internal/pretok"
	"github.com/amosdevstudio/bpe/internal/train"
)

// Save writes the model: the rule line, the vocabulary size, then one
// "a b" line per merge in learned order.
func (t *Tokenizer) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "bpe: saving model")
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%s\n%d\n", t.rule.Line(), t.vocabSize)
	for _, m := range t.merges {
		fmt.Fprintf(w, "%d %d\n", m.A, m.B)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "bpe: saving model")
	}
	return errors.Wrap(f.Close(), "bpe: saving model")
}

// Load reads a model written by Save and returns a ready tokenizer.
func Load(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "bpe: loading model")
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	line, ok := scanLine(sc)
	if !ok {
		return nil, errors.Wrap(ErrModelFormat, "missing rule line")
	}
	rule, err := pretok.Parse(line)
	if err != nil {
		return nil, errors.Wrapf(ErrModelFormat, "rule line: %v", err)
	}

	line, ok = scanLine(sc)
	if !ok {
		return nil, errors.Wrap(ErrModelFormat, "missing vocabulary size")
	}
	vocabSize, err := strconv.Atoi(line)
	if err != nil {
		return nil, errors.Wrapf(ErrModelFormat, "vocabulary size %q", line)
	}
	if vocabSize < int(train.FirstMergedID) {
		return nil, errors.Wrapf(ErrModelFormat, "vocabulary size %d below %d", vocabSize, train.FirstMergedID)
	}

	wantMerges := vocabSize - int(train.FirstMergedID)
	merges := make([]train.Pair, 0, wantMerges)
	for len(merges) < wantMerges {
		line, ok = scanLine(sc)
		if !ok {
			return nil, errors.Wrapf(ErrModelFormat, "expected %d merges, file has %d", wantMerges, len(merges))
		}
		m, err := parseMerge(line, int32(int(train.FirstMergedID)+len(merges)))
		if err != nil {
			return nil, err
		}
		merges = append(merges, m)
	}

	if line, ok = scanLine(sc); ok && strings.TrimSpace(line) != "" {
		return nil, errors.Wrapf(ErrModelFormat, "trailing content %q after %d merges", line, wantMerges)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "bpe: loading model")
	}

	t := &Tokenizer{rule: rule, merges: merges}
	t.rebuild()
	return t, nil
}

func scanLine(sc *bufio.Scanner) (string, bool) {
	if !sc.Scan() {
		return "", false
	}
	return sc.Text(), true
}

// parseMerge reads one "a b" line. Each constituent must already be defined
// when its line is reached, so both ids are below the id the line defines.
func parseMerge(line string, defines int32) (train.Pair, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return train.Pair{}, errors.Wrapf(ErrModelFormat, "merge line %q", line)
	}

	a, errA := strconv.ParseInt(fields[0], 10, 32)
	b, errB := strconv.ParseInt(fields[1], 10, 32)
	if errA != nil || errB != nil {
		return train.Pair{}, errors.Wrapf(ErrModelFormat, "merge line %q", line)
	}
	if a < 0 || b < 0 || int32(a) >= defines || int32(b) >= defines {
		return train.Pair{}, errors.Wrapf(ErrModelFormat, "merge (%d, %d) refers to ids not defined before %d", a, b, defines)
	}
	return train.Pair{A: int32(a), B: int32(b)}, nil
}
