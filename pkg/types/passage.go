// Copyright DTMBX, 2026. All rights reserved.

package types

// Passage is a citation-ready excerpt of a document returned by
// retrieval. It is transient (never persisted as its own table) and must
// always carry full document identity and location so downstream analysis
// can cite it without consulting the store again.
// Per prd005-retrieval R2.1-R2.4.
type Passage struct {
	// Document identity.
	DocumentID          int64  `json:"document_id" yaml:"document_id"`
	SHA256              string `json:"sha256" yaml:"sha256"`
	Filename            string `json:"filename" yaml:"filename"`
	StoragePathOriginal string `json:"storage_path_original" yaml:"storage_path_original"`
	SourceSystem        string `json:"source_system" yaml:"source_system"`

	// Location within the canonical text.
	PageNumber int `json:"page_number" yaml:"page_number"`
	TextStart  int `json:"text_start" yaml:"text_start"`
	TextEnd    int `json:"text_end" yaml:"text_end"`

	// Snippet is the literal excerpt drawn from the canonical text.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Score is the retrieval relevance, higher is better.
	Score float64 `json:"score" yaml:"score"`
}

// Valid reports whether the passage carries every identity and location
// field a citation needs. Invalid passages must not leave the retriever.
func (p Passage) Valid() bool {
	return p.DocumentID > 0 &&
		p.SHA256 != "" &&
		p.Filename != "" &&
		p.StoragePathOriginal != "" &&
		p.SourceSystem != "" &&
		p.PageNumber > 0 &&
		p.TextEnd > p.TextStart
}
