// Copyright DTMBX, 2026. All rights reserved.

// Package cite scans canonical text for legal citation spans.
// Implements: prd003-citations (R1-R4);
//
//	docs/ARCHITECTURE § Citation Extractor.
package cite

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

// Recognizer finds citation spans in canonical text. Implementations must
// fill CiteText, NormalizedCite, StartOffset, and EndOffset identically;
// the extractor re-sorts output so callers never see recognizer-dependent
// ordering (R2.2).
type Recognizer interface {
	// Name identifies the recognizer in manifests and provenance.
	Name() string

	// Recognize returns the spans found in text, in any order.
	Recognize(text string) ([]types.Citation, error)
}

// Extractor pairs the primary reporter-grammar recognizer with the
// conservative regex fallback. Selection happens at construction, not at
// call time: a primary that failed to load stays unavailable for the
// process lifetime (R4.1).
type Extractor struct {
	primary  Recognizer
	fallback Recognizer
}

// NewExtractor builds an extractor with whichever recognizers are
// available. The reporter table is embedded, so the primary normally
// loads; if it does not, extraction degrades to the fallback pattern
// rather than failing ingestion.
func NewExtractor() *Extractor {
	e := &Extractor{fallback: fallbackRecognizer{}}
	if r, err := NewReporterRecognizer(); err == nil {
		e.primary = r
	}
	return e
}

// ActiveRecognizer returns the name of the recognizer Extract will try
// first, for manifest audit records.
func (e *Extractor) ActiveRecognizer() string {
	if e.primary != nil {
		return e.primary.Name()
	}
	return e.fallback.Name()
}

// Extract returns the citations in text, re-sorted by
// (start offset, cite text) regardless of which recognizer produced them.
// Unknown offsets order as 0 but stay stored as unknown (R2.3).
func (e *Extractor) Extract(text string) []types.Citation {
	var citations []types.Citation
	var err error

	if e.primary != nil {
		citations, err = e.primary.Recognize(text)
	}
	if e.primary == nil || err != nil {
		citations, _ = e.fallback.Recognize(text)
	}

	sort.SliceStable(citations, func(i, j int) bool {
		ki, kj := citations[i].OrderKey(), citations[j].OrderKey()
		if ki != kj {
			return ki < kj
		}
		return citations[i].CiteText < citations[j].CiteText
	})
	return citations
}

// normalizeCite collapses internal whitespace to single spaces.
func normalizeCite(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

//go:embed reporters.yaml
var reportersYAML []byte

type reporterEntry struct {
	Abbreviation string `yaml:"abbreviation"`
	Name         string `yaml:"name"`
}

type reporterTable struct {
	Reporters []reporterEntry `yaml:"reporters"`
}

// ReporterRecognizer is the primary recognizer: a volume/reporter/page
// grammar driven by the embedded reporter-abbreviation table. It also
// captures pin cites and a trailing parenthetical as the target hint.
type ReporterRecognizer struct {
	pattern *regexp.Regexp
	names   map[string]string
}

// NewReporterRecognizer loads the embedded reporter table and compiles
// the citation grammar. An empty or unparsable table is an error; the
// extractor then falls back to the conservative pattern.
func NewReporterRecognizer() (*ReporterRecognizer, error) {
	var table reporterTable
	if err := yaml.Unmarshal(reportersYAML, &table); err != nil {
		return nil, fmt.Errorf("parsing reporter table: %w", err)
	}
	if len(table.Reporters) == 0 {
		return nil, fmt.Errorf("reporter table is empty")
	}

	names := make(map[string]string, len(table.Reporters))
	abbrs := make([]string, 0, len(table.Reporters))
	for _, r := range table.Reporters {
		names[r.Abbreviation] = r.Name
		abbrs = append(abbrs, r.Abbreviation)
	}

	// Longest abbreviation first so "F. Supp. 2d" beats "F.".
	sort.Slice(abbrs, func(i, j int) bool { return len(abbrs[i]) > len(abbrs[j]) })
	for i, a := range abbrs {
		abbrs[i] = regexp.QuoteMeta(a)
	}

	// volume SP reporter SP page [, (at) pin] [ (parenthetical)]
	expr := `\b(\d{1,4})\s+(` + strings.Join(abbrs, "|") + `)\s+(\d{1,5})` +
		`(?:,\s*(?:at\s+)?(\d{1,5}))?` +
		`(?:\s+\(([^()]{1,80}?\d{4})\))?`
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling citation grammar: %w", err)
	}

	return &ReporterRecognizer{pattern: pattern, names: names}, nil
}

// Name implements Recognizer.
func (r *ReporterRecognizer) Name() string { return "reporter-grammar" }

// Recognize implements Recognizer. Offsets are byte offsets into the
// UTF-8 canonical text.
func (r *ReporterRecognizer) Recognize(text string) ([]types.Citation, error) {
	var citations []types.Citation
	for _, m := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		citeText := text[start:end]

		c := types.Citation{
			CiteText:       citeText,
			NormalizedCite: normalizeCite(citeText),
			StartOffset:    intPtr(start),
			EndOffset:      intPtr(end),
		}

		reporter := text[m[4]:m[5]]
		c.TargetHint = r.names[reporter]
		if m[8] >= 0 {
			c.Pinpoint = text[m[8]:m[9]]
		}
		// A court/year parenthetical refines the hint when present.
		if m[10] >= 0 {
			c.TargetHint = c.TargetHint + " (" + text[m[10]:m[11]] + ")"
		}

		citations = append(citations, c)
	}
	return citations, nil
}

// fallbackRe is the conservative pattern: digits, whitespace, an
// abbreviation-shaped token run, whitespace, digits. The reporter run is
// accepted only when it contains a period (see Recognize), which screens
// out ordinary prose like "chapter 12 section 3".
var fallbackRe = regexp.MustCompile(
	`\b(\d{1,4})\s+([A-Z][A-Za-z0-9.&']*(?:\s[A-Za-z0-9.&']+){0,2}?)\s+(\d{1,5})\b`)

// fallbackRecognizer matches the minimal volume/reporter/page shape with
// no reporter table. It never errors.
type fallbackRecognizer struct{}

// Name implements Recognizer.
func (fallbackRecognizer) Name() string { return "fallback-regex" }

// Recognize implements Recognizer.
func (fallbackRecognizer) Recognize(text string) ([]types.Citation, error) {
	var citations []types.Citation
	for _, m := range fallbackRe.FindAllStringSubmatchIndex(text, -1) {
		reporter := text[m[4]:m[5]]
		if !strings.Contains(reporter, ".") {
			continue
		}
		start, end := m[0], m[1]
		citeText := text[start:end]
		citations = append(citations, types.Citation{
			CiteText:       citeText,
			NormalizedCite: normalizeCite(citeText),
			StartOffset:    intPtr(start),
			EndOffset:      intPtr(end),
		})
	}
	return citations, nil
}

func intPtr(v int) *int { return &v }
