// Copyright DTMBX, 2026. All rights reserved.

package types

// Citation is a span within one document's canonical text that matched a
// legal citation pattern. Citation rows are fully replaced on every
// (re-)ingest of the owning document. Per prd003-citations R1.1-R1.4.
type Citation struct {
	// FromDocID is the document whose canonical text contains the span.
	FromDocID int64 `json:"from_doc_id" yaml:"from_doc_id"`

	// CiteText is the verbatim matched text.
	CiteText string `json:"cite_text" yaml:"cite_text"`

	// NormalizedCite is the whitespace-collapsed form used for lookup.
	NormalizedCite string `json:"normalized_cite" yaml:"normalized_cite"`

	// StartOffset and EndOffset are character offsets into the canonical
	// text. A nil offset means the recognizer could not locate the span;
	// nil sorts as 0 for ordering but is stored as unknown.
	StartOffset *int `json:"start_offset" yaml:"start_offset"`
	EndOffset   *int `json:"end_offset" yaml:"end_offset"`

	// TargetHint is the recognizer's guess at the cited authority
	// (e.g. the canonical reporter name or a parenthetical court/year).
	TargetHint string `json:"target_hint,omitempty" yaml:"target_hint,omitempty"`

	// Pinpoint is the pin cite within the target, when present.
	Pinpoint string `json:"pinpoint,omitempty" yaml:"pinpoint,omitempty"`
}

// OrderKey returns the offset used for stable citation ordering.
// Unknown offsets order as 0; the stored value stays nil.
func (c Citation) OrderKey() int {
	if c.StartOffset == nil {
		return 0
	}
	return *c.StartOffset
}

// CitationRecord is a persisted link from an analysis output back to a
// Passage that was actually supplied to the Analyzer. Records are created
// only after marker validation. Per prd006-analysis R3.1-R3.4.
type CitationRecord struct {
	// AnalysisID groups all records produced by one Analyze call.
	AnalysisID string `json:"analysis_id" yaml:"analysis_id"`

	DocumentID int64  `json:"document_id" yaml:"document_id"`
	PageNumber int    `json:"page_number" yaml:"page_number"`
	TextStart  int    `json:"text_start" yaml:"text_start"`
	TextEnd    int    `json:"text_end" yaml:"text_end"`
	Snippet    string `json:"snippet" yaml:"snippet"`

	// AuthorityName and AuthorityCitation identify the cited legal
	// authority when the passage carries one.
	AuthorityName     string `json:"authority_name,omitempty" yaml:"authority_name,omitempty"`
	AuthorityCitation string `json:"authority_citation,omitempty" yaml:"authority_citation,omitempty"`
}
