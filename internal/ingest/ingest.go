// Copyright DTMBX, 2026. All rights reserved.

// Package ingest orchestrates one document's path through the pipeline:
// fetch, blob writes, canonicalization, document upsert, index rebuild,
// citation re-extraction, and the provenance event. Each step is
// idempotent; the store steps apply as one atomic unit, so re-running an
// ingestion with identical content changes nothing and appends nothing.
// Implements: prd001-ingestion (R1-R6);
//
//	docs/ARCHITECTURE § Ingestor.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DTMBX/Evident-sub002/internal/blob"
	"github.com/DTMBX/Evident-sub002/internal/canonical"
	"github.com/DTMBX/Evident-sub002/internal/cite"
	"github.com/DTMBX/Evident-sub002/internal/fetch"
	"github.com/DTMBX/Evident-sub002/internal/manifest"
	"github.com/DTMBX/Evident-sub002/internal/store"
	"github.com/DTMBX/Evident-sub002/pkg/types"
)

// eventIngest is the provenance event type appended by Ingest.
const eventIngest = "ingest"

// Ingestor wires the pipeline components for ingestion. All fields are
// required except Manifests, which may be nil to skip audit mirrors
// (tests mostly do).
type Ingestor struct {
	Blobs     *blob.Store
	Store     *store.Store
	Extractor *cite.Extractor
	Manifests *manifest.Writer

	// Version is recorded in provenance tool_versions_json.
	Version string
}

// Request describes one document to ingest. Fetch is the pluggable
// source collaborator; swapping sources never touches the ingestor.
type Request struct {
	Source    string
	SourceKey string
	Fields    types.DocumentFields
	Fetch     fetch.Func

	// IdempotencyKey, when set, replaces the raw content hash as the
	// provenance inputs key. Retried calls whose fetched bytes differ
	// slightly but represent the same logical attempt pass the same key
	// and still produce a single event.
	IdempotencyKey string
}

// Result reports what one ingestion did.
type Result struct {
	DocID           int64
	RawSHA256       string
	CanonicalSHA256 string
	CitationCount   int

	// EventAppended is false when an identical ingest had already been
	// recorded for this document.
	EventAppended bool
}

// Ingest runs the full pipeline for one document and returns its doc_id.
// Fetch failures surface as a retryable StageError with nothing written;
// store failures abort atomically. Re-running with byte-identical content
// yields the same doc_id, identical citations, and zero new provenance
// events (R1.4).
func (ing *Ingestor) Ingest(ctx context.Context, req Request) (Result, error) {
	if req.Source == "" || req.SourceKey == "" {
		return Result{}, fmt.Errorf("source and source key are required")
	}
	if req.Fetch == nil {
		return Result{}, fmt.Errorf("fetch collaborator is required")
	}

	// 1. Fetch. Nothing is written before this succeeds.
	body, contentType, err := req.Fetch(ctx)
	if err != nil {
		return Result{}, &types.StageError{Stage: "fetch", Err: err}
	}
	capturedAt := time.Now().UTC()

	// 2-3. Raw blob, canonical form, canonical blob. Blob writes are
	// content-addressed: a cancelled ingestion can strand nothing but
	// bytes an identical retry will reuse.
	rawRes, err := ing.Blobs.Write(body, types.BlobRaw)
	if err != nil {
		return Result{}, err
	}
	canonBytes, canonText := canonical.Canonicalize(body, contentType)
	canonRes, err := ing.Blobs.Write(canonBytes, types.BlobCanonical)
	if err != nil {
		return Result{}, err
	}
	canonicalAt := time.Now().UTC()

	// 6 (extraction half). Pure computation, before the transaction.
	citations := ing.Extractor.Extract(canonText)

	doc := types.Document{
		Source:          req.Source,
		SourceKey:       req.SourceKey,
		Jurisdiction:    req.Fields.Jurisdiction,
		DocType:         req.Fields.DocType,
		Title:           req.Fields.Title,
		Court:           req.Fields.Court,
		PublishedDate:   req.Fields.PublishedDate,
		CapturedAt:      capturedAt,
		RawSHA256:       rawRes.SHA256,
		CanonicalSHA256: canonRes.SHA256,
		RawPath:         rawRes.Path,
		CanonicalPath:   canonRes.Path,
		License:         req.Fields.License,
	}

	inputsKey := req.IdempotencyKey
	if inputsKey == "" {
		inputsKey = rawRes.SHA256
	}

	// 4-7. One atomic unit: document upsert, index rebuild, citation
	// replace, provenance append-if-new.
	res := Result{RawSHA256: rawRes.SHA256, CanonicalSHA256: canonRes.SHA256}
	err = ing.Store.WithIngestTx(ctx, req.Source, req.SourceKey, func(tx *store.IngestTx) error {
		docID, err := tx.UpsertDocument(doc)
		if err != nil {
			return err
		}
		res.DocID = docID

		if err := tx.UpsertFTSEntry(docID, doc.Title, doc.Court, canonText); err != nil {
			return err
		}

		for i := range citations {
			citations[i].FromDocID = docID
		}
		if err := tx.ReplaceCitations(docID, citations); err != nil {
			return err
		}
		res.CitationCount = len(citations)

		inserted, err := tx.AppendProvenanceIfNew(types.ProvenanceEvent{
			DocID:            docID,
			EventType:        eventIngest,
			ToolVersionsJSON: ing.toolVersions(),
			InputsSHA256:     inputsKey,
			OutputsSHA256:    canonRes.SHA256,
			Timestamp:        time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		res.EventAppended = inserted
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// 8. Manifest mirror, derived and reproducible.
	if ing.Manifests != nil {
		rec := types.ManifestRecord{
			DocID:        res.DocID,
			SourceSystem: req.Source,
			SourceKey:    req.SourceKey,
			Original: types.ManifestBlob{
				SHA256: rawRes.SHA256, Path: rawRes.Path, Bytes: len(body),
			},
			Processed: types.ManifestBlob{
				SHA256: canonRes.SHA256, Path: canonRes.Path, Bytes: len(canonBytes),
			},
			Extraction: types.ManifestExtraction{
				Recognizer:    ing.Extractor.ActiveRecognizer(),
				CitationCount: res.CitationCount,
			},
			Timestamps: types.ManifestTimestamps{
				CapturedAt:  capturedAt,
				CanonicalAt: canonicalAt,
				IndexedAt:   time.Now().UTC(),
			},
		}
		if err := ing.Manifests.Write(rec); err != nil {
			return Result{}, fmt.Errorf("writing manifest: %w", err)
		}
	}

	return res, nil
}

func (ing *Ingestor) toolVersions() string {
	v := ing.Version
	if v == "" {
		v = "dev"
	}
	data, _ := json.Marshal(map[string]string{
		"evident":    v,
		"recognizer": ing.Extractor.ActiveRecognizer(),
	})
	return string(data)
}

// BatchResult holds counts from a batch ingestion run.
type BatchResult struct {
	Ingested int
	Failed   int
}

// Total returns the number of requests processed.
func (r BatchResult) Total() int {
	return r.Ingested + r.Failed
}

// HasFailures reports whether any requests failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// IngestBatch processes requests with bounded concurrency, printing
// per-item status to w and returning a summary. Individual failures do
// not stop the batch; same-key requests still serialize in the store.
func (ing *Ingestor) IngestBatch(ctx context.Context, reqs []Request, concurrency int, w io.Writer) BatchResult {
	if concurrency <= 0 {
		concurrency = 4
	}

	var (
		mu     sync.Mutex
		result BatchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, req := range reqs {
		g.Go(func() error {
			res, err := ing.Ingest(gctx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(w, "failed   %s/%s: %v\n", req.Source, req.SourceKey, err)
				result.Failed++
				return nil
			}
			fmt.Fprintf(w, "ingested %s/%s (doc %d, %d citations)\n",
				req.Source, req.SourceKey, res.DocID, res.CitationCount)
			result.Ingested++
			return nil
		})
	}
	g.Wait()

	fmt.Fprintf(w, "\nBatch summary: %d ingested, %d failed (total: %d)\n",
		result.Ingested, result.Failed, result.Total())
	return result
}
