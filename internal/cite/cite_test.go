// Copyright DTMBX, 2026. All rights reserved.

package cite

import (
	"sort"
	"testing"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

func TestExtractOrdersByOffsetThenText(t *testing.T) {
	e := NewExtractor()
	text := "This opinion cites 123 F.3d 456 and 234 U.S. 789."

	got := e.Extract(text)
	if len(got) != 2 {
		t.Fatalf("Extract returned %d citations, want 2", len(got))
	}
	if got[0].CiteText != "123 F.3d 456" {
		t.Errorf("first citation = %q, want %q", got[0].CiteText, "123 F.3d 456")
	}
	if got[1].CiteText != "234 U.S. 789" {
		t.Errorf("second citation = %q, want %q", got[1].CiteText, "234 U.S. 789")
	}
	if *got[0].StartOffset >= *got[1].StartOffset {
		t.Error("citations not ordered by start offset")
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := NewExtractor()
	text := "See 347 U.S. 483, 495 (1954); accord 163 U.S. 537."

	first := e.Extract(text)
	second := e.Extract(text)

	if len(first) != len(second) {
		t.Fatalf("runs disagreed on count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].CiteText != second[i].CiteText ||
			*first[i].StartOffset != *second[i].StartOffset {
			t.Errorf("run mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestReporterRecognizerFields(t *testing.T) {
	r, err := NewReporterRecognizer()
	if err != nil {
		t.Fatal(err)
	}

	text := "Roe v. Wade, 410 U.S. 113, 152 (Sup. Ct. 1973) controls."
	got, err := r.Recognize(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d citations, want 1", len(got))
	}

	c := got[0]
	if c.CiteText != "410 U.S. 113, 152 (Sup. Ct. 1973)" {
		t.Errorf("CiteText = %q", c.CiteText)
	}
	if c.NormalizedCite != "410 U.S. 113, 152 (Sup. Ct. 1973)" {
		t.Errorf("NormalizedCite = %q", c.NormalizedCite)
	}
	if c.Pinpoint != "152" {
		t.Errorf("Pinpoint = %q, want 152", c.Pinpoint)
	}
	if c.TargetHint != "United States Reports (Sup. Ct. 1973)" {
		t.Errorf("TargetHint = %q", c.TargetHint)
	}
	if c.StartOffset == nil || text[*c.StartOffset:*c.EndOffset] != c.CiteText {
		t.Error("offsets do not frame the matched text")
	}
}

func TestReporterRecognizerLongestAbbreviationWins(t *testing.T) {
	r, err := NewReporterRecognizer()
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Recognize("See 992 F. Supp. 2d 1010.")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d citations, want 1", len(got))
	}
	if got[0].CiteText != "992 F. Supp. 2d 1010" {
		t.Errorf("CiteText = %q, want full F. Supp. 2d cite", got[0].CiteText)
	}
}

func TestFallbackRecognizerConservative(t *testing.T) {
	var f fallbackRecognizer

	tests := []struct {
		text string
		want []string
	}{
		{"cites 123 F.3d 456 here", []string{"123 F.3d 456"}},
		{"and 234 U.S. 789 there", []string{"234 U.S. 789"}},
		// No period in the middle token run: prose, not a reporter.
		{"chapter 12 Section 3 applies", nil},
		{"watched 4 Movies 2 times", nil},
	}
	for _, tt := range tests {
		got, err := f.Recognize(tt.text)
		if err != nil {
			t.Fatal(err)
		}
		var texts []string
		for _, c := range got {
			texts = append(texts, c.CiteText)
		}
		if len(texts) != len(tt.want) {
			t.Errorf("Recognize(%q) = %v, want %v", tt.text, texts, tt.want)
			continue
		}
		for i := range texts {
			if texts[i] != tt.want[i] {
				t.Errorf("Recognize(%q)[%d] = %q, want %q", tt.text, i, texts[i], tt.want[i])
			}
		}
	}
}

func TestRecognizerPathsConverge(t *testing.T) {
	// Both recognizers must agree on the core contract fields for a
	// citation they both match, so the active path is unobservable.
	text := "as held in 521 U.S. 898 and elsewhere"

	primary, err := NewReporterRecognizer()
	if err != nil {
		t.Fatal(err)
	}
	p, err := primary.Recognize(text)
	if err != nil {
		t.Fatal(err)
	}
	f, err := fallbackRecognizer{}.Recognize(text)
	if err != nil {
		t.Fatal(err)
	}

	if len(p) != 1 || len(f) != 1 {
		t.Fatalf("counts: primary %d, fallback %d, want 1 each", len(p), len(f))
	}
	if p[0].CiteText != f[0].CiteText ||
		p[0].NormalizedCite != f[0].NormalizedCite ||
		*p[0].StartOffset != *f[0].StartOffset ||
		*p[0].EndOffset != *f[0].EndOffset {
		t.Errorf("paths diverge: primary %+v, fallback %+v", p[0], f[0])
	}
}

func TestNilOffsetsOrderAsZero(t *testing.T) {
	ten := 10
	citations := []types.Citation{
		{CiteText: "b cite", StartOffset: &ten},
		{CiteText: "a cite"}, // unknown offset
	}

	sort.SliceStable(citations, func(i, j int) bool {
		ki, kj := citations[i].OrderKey(), citations[j].OrderKey()
		if ki != kj {
			return ki < kj
		}
		return citations[i].CiteText < citations[j].CiteText
	})

	if citations[0].CiteText != "a cite" {
		t.Error("nil offset should order before real offsets")
	}
	if citations[0].StartOffset != nil {
		t.Error("ordering must not materialize a value for unknown offsets")
	}
}
