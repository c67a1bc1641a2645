package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "evident/0.1"). Per prd001-ingestion R4.2.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// IngestConfig holds settings for the ingestion stage.
// Per prd001-ingestion R2.2, R4.1-R4.3.
type IngestConfig struct {
	HTTPConfig `yaml:",inline"`

	// DataDir is the base directory for durable state (contains blobs/,
	// manifests/, index/).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// FetchDelay is the delay between consecutive remote fetches (default 1s).
	FetchDelay time.Duration `json:"fetch_delay" yaml:"fetch_delay"`

	// Concurrency bounds parallel batch ingestion (default 4). Ingestions
	// of the same (source, source_key) still serialize in the store.
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// StoreConfig holds settings for the document store and retriever.
// Per prd004-document-store R1.2, prd005-retrieval R3.1-R3.3.
type StoreConfig struct {
	// DataDir is the base directory for durable state (contains index/).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// MaxResults is the default maximum number of retrieval results (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MinScore is the relevance floor; passages scoring below it are
	// excluded rather than returned with near-zero confidence.
	MinScore float64 `json:"min_score" yaml:"min_score"`

	// BodyCacheSize bounds the in-process canonical-body cache used when
	// building passages (default 32 documents).
	BodyCacheSize int `json:"body_cache_size" yaml:"body_cache_size"`
}

// AnalysisConfig holds settings for the analysis stage.
// Per prd006-analysis R1.2.
type AnalysisConfig struct {
	// MaxPassages caps how many passages are handed to the generation
	// collaborator as grounding context (default 8).
	MaxPassages int `json:"max_passages" yaml:"max_passages"`

	// MaxSentences caps the extractive generator's response length (default 5).
	MaxSentences int `json:"max_sentences" yaml:"max_sentences"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Ingest   IngestConfig   `json:"ingest" yaml:"ingest"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`
}
