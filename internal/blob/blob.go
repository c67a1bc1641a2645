// Copyright DTMBX, 2026. All rights reserved.

// Package blob implements content-addressed, write-once byte storage.
// Implements: prd001-ingestion (R2);
//
//	docs/ARCHITECTURE § Blob Store.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

const blobsDir = "blobs"

// Store writes blobs under dataDir/blobs/{kind}/{sha256}.bin. Blobs are
// immutable once written; identical bytes under the same kind always
// resolve to the same file, so concurrent writers need no coordination.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dataDir/blobs/.
func NewStore(dataDir string) *Store {
	return &Store{root: filepath.Join(dataDir, blobsDir)}
}

// WriteResult identifies a stored blob.
type WriteResult struct {
	Path   string
	SHA256 string
}

// Write stores data under its SHA-256. If the blob already exists the
// existing identity is returned without rewriting (R2.3). An undefined
// kind is a programming error and panics rather than returning an error.
func (s *Store) Write(data []byte, kind types.BlobKind) (WriteResult, error) {
	if !kind.Valid() {
		panic(fmt.Sprintf("blob: undefined kind %q", kind))
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	dir := filepath.Join(s.root, string(kind))
	path := filepath.Join(dir, digest+".bin")

	// Dedup: an existing file already holds these exact bytes.
	if _, err := os.Stat(path); err == nil {
		return WriteResult{Path: path, SHA256: digest}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WriteResult{}, fmt.Errorf("creating blob directory %s: %w", dir, err)
	}

	// Write to a temp file and rename so a crashed writer never leaves a
	// partial blob at the content-addressed path.
	tmp, err := os.CreateTemp(dir, ".blob-*.tmp")
	if err != nil {
		return WriteResult{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return WriteResult{}, fmt.Errorf("writing blob: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return WriteResult{}, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return WriteResult{}, fmt.Errorf("renaming temp file: %w", err)
	}
	return WriteResult{Path: path, SHA256: digest}, nil
}

// Read returns the bytes of a previously written blob.
func (s *Store) Read(kind types.BlobKind, digest string) ([]byte, error) {
	if !kind.Valid() {
		panic(fmt.Sprintf("blob: undefined kind %q", kind))
	}
	path := filepath.Join(s.root, string(kind), digest+".bin")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s/%s: %w", kind, digest, err)
	}
	return data, nil
}
