// Copyright DTMBX, 2026. All rights reserved.

// Package types defines the domain records shared by the pipeline stages.
package types

import "time"

// BlobKind partitions the content-addressed blob store.
// Per prd001-ingestion R2.1.
type BlobKind string

const (
	BlobRaw       BlobKind = "raw"
	BlobCanonical BlobKind = "canonical"
	BlobJSON      BlobKind = "json"
)

// Valid reports whether k is one of the three defined blob kinds.
func (k BlobKind) Valid() bool {
	switch k {
	case BlobRaw, BlobCanonical, BlobJSON:
		return true
	}
	return false
}

// Document is one row per logical source document. Identity is the
// (Source, SourceKey) pair; DocID is assigned by the store on first
// ingest and never changes. Per prd004-document-store R1.1-R1.3.
type Document struct {
	// DocID is the store-assigned identity.
	DocID int64 `json:"doc_id" yaml:"doc_id"`

	// Source is the origin system tag (e.g. "courtlistener", "upload").
	Source string `json:"source" yaml:"source"`

	// SourceKey is the origin-native identifier, unique per source.
	SourceKey string `json:"source_key" yaml:"source_key"`

	Jurisdiction  string `json:"jurisdiction,omitempty" yaml:"jurisdiction,omitempty"`
	DocType       string `json:"doc_type,omitempty" yaml:"doc_type,omitempty"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Court         string `json:"court,omitempty" yaml:"court,omitempty"`
	PublishedDate string `json:"published_date,omitempty" yaml:"published_date,omitempty"`

	// CapturedAt is the UTC time the content was fetched.
	CapturedAt time.Time `json:"captured_at_utc" yaml:"captured_at_utc"`

	// RawSHA256 and CanonicalSHA256 are the content hashes of the raw
	// and canonicalized blobs.
	RawSHA256       string `json:"raw_sha256" yaml:"raw_sha256"`
	CanonicalSHA256 string `json:"canonical_sha256" yaml:"canonical_sha256"`

	// RawPath and CanonicalPath locate the blobs on disk.
	RawPath       string `json:"raw_path" yaml:"raw_path"`
	CanonicalPath string `json:"canonical_path" yaml:"canonical_path"`

	License string `json:"license,omitempty" yaml:"license,omitempty"`
}

// DocumentFields carries the mutable metadata supplied by a caller at
// ingest time. The store merges these into the Document row; identity
// and hash fields are managed by the Ingestor.
type DocumentFields struct {
	Jurisdiction  string `json:"jurisdiction,omitempty" yaml:"jurisdiction,omitempty"`
	DocType       string `json:"doc_type,omitempty" yaml:"doc_type,omitempty"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Court         string `json:"court,omitempty" yaml:"court,omitempty"`
	PublishedDate string `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	License       string `json:"license,omitempty" yaml:"license,omitempty"`
}

// ProvenanceEvent is one audit-log row recording that a processing step
// ran on specific input/output hashes. At most one row exists per
// (DocID, EventType, InputsSHA256). Per prd001-ingestion R5.1-R5.3.
type ProvenanceEvent struct {
	DocID int64 `json:"doc_id" yaml:"doc_id"`

	// EventType names the processing step (e.g. "ingest").
	EventType string `json:"event_type" yaml:"event_type"`

	// ToolVersionsJSON records the versions of the tools that ran the
	// step, as a JSON object.
	ToolVersionsJSON string `json:"tool_versions_json" yaml:"tool_versions_json"`

	// InputsSHA256 is the hash of the step's input, or an explicit
	// idempotency key supplied by the caller.
	InputsSHA256 string `json:"inputs_sha256" yaml:"inputs_sha256"`

	// OutputsSHA256 is the hash of the step's output.
	OutputsSHA256 string `json:"outputs_sha256" yaml:"outputs_sha256"`

	Timestamp time.Time `json:"timestamp_utc" yaml:"timestamp_utc"`
}
