// Copyright DTMBX, 2026. All rights reserved.

package types

import "time"

// ManifestBlob describes one stored blob inside a manifest.
type ManifestBlob struct {
	SHA256 string `json:"sha256"`
	Path   string `json:"path"`
	Bytes  int    `json:"bytes"`
}

// ManifestExtraction summarizes the citation extraction for a manifest.
type ManifestExtraction struct {
	Recognizer    string `json:"recognizer"`
	CitationCount int    `json:"citation_count"`
}

// ManifestTimestamps mirrors the processing timestamps of one ingest.
type ManifestTimestamps struct {
	CapturedAt  time.Time `json:"captured_at_utc"`
	CanonicalAt time.Time `json:"canonicalized_at_utc"`
	IndexedAt   time.Time `json:"indexed_at_utc"`
}

// ManifestRecord is the per-document JSON audit record written alongside
// the relational rows. It is derived data, reproducible from the
// Document, blob, and provenance rows, and exists so external audit can
// proceed without querying the store. Per prd001-ingestion R6.1-R6.3.
type ManifestRecord struct {
	// ManifestID is a stable identifier for this manifest write.
	ManifestID string `json:"manifest_id"`

	DocID        int64  `json:"doc_id"`
	SourceSystem string `json:"source_system"`
	SourceKey    string `json:"source_key"`

	Original   ManifestBlob       `json:"original"`
	Processed  ManifestBlob       `json:"processed"`
	Extraction ManifestExtraction `json:"extraction"`
	Timestamps ManifestTimestamps `json:"timestamps"`
}
