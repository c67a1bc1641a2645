// Copyright DTMBX, 2026. All rights reserved.

// Package manifest writes per-document JSON audit records. Manifests are
// derived data: every field is reproducible from the store and blob
// layers, so a lost manifest directory is an inconvenience, not a loss.
// Implements: prd001-ingestion (R6).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

// Writer persists manifest records under a single directory, one file per
// canonical content hash.
type Writer struct {
	dir string
}

// NewWriter creates the manifest directory if needed.
func NewWriter(dataDir string) (*Writer, error) {
	dir := filepath.Join(dataDir, "manifests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write stores rec as <canonical-sha256>.json, assigning a fresh
// ManifestID when the record carries none. Re-ingesting identical
// content overwrites the previous mirror in place.
func (w *Writer) Write(rec types.ManifestRecord) error {
	if rec.Processed.SHA256 == "" {
		return fmt.Errorf("manifest record has no processed hash")
	}
	if rec.ManifestID == "" {
		rec.ManifestID = uuid.NewString()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	path := w.path(rec.Processed.SHA256)
	tmp, err := os.CreateTemp(w.dir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// Read loads the manifest for a canonical content hash.
func (w *Writer) Read(canonicalSHA256 string) (types.ManifestRecord, error) {
	data, err := os.ReadFile(w.path(canonicalSHA256))
	if err != nil {
		return types.ManifestRecord{}, fmt.Errorf("reading manifest: %w", err)
	}
	var rec types.ManifestRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.ManifestRecord{}, fmt.Errorf("decoding manifest: %w", err)
	}
	return rec, nil
}

func (w *Writer) path(sha string) string {
	return filepath.Join(w.dir, sha+".json")
}
