// Copyright DTMBX, 2026. All rights reserved.

// Package analyze turns retrieved passages into a grounded response with
// validated citations. The anti-hallucination contract lives here: a
// citation is persisted only when its marker resolves to a passage that
// was actually supplied to the call.
// Implements: prd006-analysis (R1-R3);
//
//	docs/ARCHITECTURE § Analyzer.
package analyze

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

// noContextResponse is returned verbatim when no passages are supplied.
const noContextResponse = "No grounded context was found for this query; " +
	"no answer can be given without supporting documents."

// markerPattern matches the citation marker format [cite:<doc_id>:<page>].
var markerPattern = regexp.MustCompile(`\[cite:(\d+):(\d+)\]`)

// Marker returns the citation marker for a passage, the form generators
// must embed to reference it.
func Marker(p types.Passage) string {
	return fmt.Sprintf("[cite:%d:%d]", p.DocumentID, p.PageNumber)
}

// Block is one formatted passage handed to a Generator. Text is the
// passage snippet; Marker is the citation token the generator embeds when
// it draws on the block.
type Block struct {
	Marker string
	Label  string
	Text   string
}

// Generator produces response text from a query and passage blocks. The
// response may embed the blocks' citation markers; anything else the
// generator invents is stripped during validation. Implementations range
// from the built-in Extractive generator to remote LLM backends.
type Generator interface {
	Name() string
	Generate(ctx context.Context, query string, blocks []Block) (string, error)
}

// Result is the outcome of one Analyze call.
type Result struct {
	AnalysisID string
	Response   string
	Records    []types.CitationRecord
}

// Analyzer validates generator output against the supplied passage set.
type Analyzer struct {
	Generator Generator

	// AuthorityFor optionally resolves a document id to the name and
	// citation of the legal authority it represents. Nil leaves the
	// authority fields empty on the produced records.
	AuthorityFor func(docID int64) (name, citation string)
}

// Analyze produces a response grounded in passages and the citation
// records that survived validation. Markers that do not resolve to a
// supplied passage are removed from the response and never persisted;
// omitting an unverifiable citation is always safe, including one is not.
// An empty passage set yields a fixed no-context response and no records.
func (a *Analyzer) Analyze(ctx context.Context, query string, passages []types.Passage) (Result, error) {
	res := Result{AnalysisID: uuid.NewString()}

	if len(passages) == 0 {
		res.Response = noContextResponse
		return res, nil
	}

	byMarker := make(map[string]types.Passage, len(passages))
	blocks := make([]Block, 0, len(passages))
	for _, p := range passages {
		if !p.Valid() {
			continue
		}
		m := Marker(p)
		if _, dup := byMarker[m]; !dup {
			byMarker[m] = p
		}
		blocks = append(blocks, Block{
			Marker: m,
			Label:  fmt.Sprintf("%s p.%d (%s)", p.Filename, p.PageNumber, p.SourceSystem),
			Text:   p.Snippet,
		})
	}
	if len(blocks) == 0 {
		res.Response = noContextResponse
		return res, nil
	}

	text, err := a.Generator.Generate(ctx, query, blocks)
	if err != nil {
		return Result{}, &types.StageError{Stage: "generate", Err: err}
	}

	res.Response, res.Records = a.validate(text, byMarker, res.AnalysisID)
	return res, nil
}

// validate scans text for citation markers, keeps those resolvable to a
// supplied passage, drops the rest from the response, and builds one
// record per distinct resolved marker.
func (a *Analyzer) validate(text string, byMarker map[string]types.Passage, analysisID string) (string, []types.CitationRecord) {
	var records []types.CitationRecord
	seen := make(map[string]bool)

	cleaned := markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		p, ok := byMarker[m]
		if !ok {
			return ""
		}
		if !seen[m] {
			seen[m] = true
			rec := types.CitationRecord{
				AnalysisID: analysisID,
				DocumentID: p.DocumentID,
				PageNumber: p.PageNumber,
				TextStart:  p.TextStart,
				TextEnd:    p.TextEnd,
				Snippet:    p.Snippet,
			}
			if a.AuthorityFor != nil {
				rec.AuthorityName, rec.AuthorityCitation = a.AuthorityFor(p.DocumentID)
			}
			records = append(records, rec)
		}
		return m
	})

	return strings.TrimSpace(collapseSpaces(cleaned)), records
}

// collapseSpaces tidies the gaps left by removed markers.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseMarker extracts the (document id, page) pair from one marker.
// It reports false for anything that is not a well-formed marker.
func ParseMarker(marker string) (docID int64, page int, ok bool) {
	m := markerPattern.FindStringSubmatch(marker)
	if m == nil || m[0] != marker {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return id, p, true
}
