package pretok

import (
	"reflect"
	"strings"
	"testing"
)

func chunkStrings(t *testing.T, r *Rule, data string, workers int) []string {
	t.Helper()
	spans, err := r.Chunks([]byte(data), workers)
	if err != nil {
		t.Fatalf("chunking failed: %v", err)
	}
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = data[sp.Start:sp.End]
	}
	return out
}

func TestSplitChunks(t *testing.T) {
	cases := []struct {
		name    string
		letters string
		in      string
		want    []string
	}{
		{"basic", " ", "hug pug pun", []string{"hug", " pug", " pun"}},
		{"leading_split", " ", " ab", []string{" ab"}},
		{"consecutive_splits", " ", "a  b", []string{"a", " ", " b"}},
		{"no_splits", "", "abc def", []string{"abc def"}},
		{"all_split_bytes", " ", "   ", []string{" ", " ", " "}},
		{"multiple_letters", " \n", "a b\nc", []string{"a", " b", "\nc"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := SplitBytes(tc.letters)
			if got := chunkStrings(t, r, tc.in, 1); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSplitChunksEmptyInput(t *testing.T) {
	spans, err := SplitBytes(" ").Chunks(nil, 1)
	if err != nil || spans != nil {
		t.Fatalf("empty input: spans=%v err=%v", spans, err)
	}
}

func TestRegexChunks(t *testing.T) {
	r, err := Regex(`[a-z]+|[0-9]+`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got := chunkStrings(t, r, "abc 123 def!", 1)
	want := []string{"abc", "123", "def"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestRegexChunksCaseInsensitive(t *testing.T) {
	r, err := Regex(`[a-z]+`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got := chunkStrings(t, r, "AbC dEf", 1)
	if !reflect.DeepEqual(got, []string{"AbC", "dEf"}) {
		t.Fatalf("got %v", got)
	}
}

func TestRegexChunksBinaryInput(t *testing.T) {
	// Offsets must be byte offsets even for non-ASCII bytes.
	r, err := Regex(`[a-z]+`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	data := "ab\xff\xfecd"
	got := chunkStrings(t, r, data, 1)
	if !reflect.DeepEqual(got, []string{"ab", "cd"}) {
		t.Fatalf("got %q", got)
	}
}

func TestRegexRejectsMultilinePattern(t *testing.T) {
	if _, err := Regex("a\nb"); err == nil {
		t.Fatalf("expected rejection of a multi-line pattern")
	}
	if _, err := Regex("[unclosed"); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	r, err := Regex(`[a-z]+|\s+`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	data := strings.Repeat("the quick brown fox jumps over the lazy dog ", 64)
	serial := chunkStrings(t, r, data, 1)

	// The pattern covers every byte, so whatever the partition does to
	// individual matches, the stitched spans must cover the same text.
	for _, workers := range []int{2, 3, 4, 8} {
		parallel := chunkStrings(t, r, data, workers)
		if got := strings.Join(parallel, ""); got != data {
			t.Fatalf("workers=%d lost bytes: %d of %d", workers, len(got), len(data))
		}
	}

	// With the cut landing exactly between two matches, the partition is
	// invisible and the chunk lists agree span for span.
	aligned := chunkStrings(t, r, data, 2)
	if !reflect.DeepEqual(serial, aligned) {
		t.Fatalf("aligned partition diverged: %d vs %d chunks", len(serial), len(aligned))
	}
}

func TestRuleLineRoundTrip(t *testing.T) {
	regexRule, err := Regex(`'s|'t|[a-z]+`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	cases := []*Rule{
		regexRule,
		SplitBytes(" "),
		SplitBytes(" \n\t"),
		SplitBytes(""),
	}

	for _, rule := range cases {
		parsed, err := Parse(rule.Line())
		if err != nil {
			t.Fatalf("parse %q: %v", rule.Line(), err)
		}
		if parsed.Mode() != rule.Mode() || parsed.Source() != rule.Source() {
			t.Fatalf("round trip of %q: got mode=%d source=%q", rule.Line(), parsed.Mode(), parsed.Source())
		}
	}
}

func TestParseBareLineIsSplitRule(t *testing.T) {
	r, err := Parse(" ;,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.Mode() != ModeSplit || r.Source() != " ;," {
		t.Fatalf("bare line parsed as mode=%d source=%q", r.Mode(), r.Source())
	}
}
