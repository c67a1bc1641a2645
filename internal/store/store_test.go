// Copyright DTMBX, 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := types.StoreConfig{DataDir: t.TempDir(), MaxResults: 10}
	s, err := Open(cfg, NewBodyCache(8))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDocument(sourceKey string) types.Document {
	return types.Document{
		Source:          "courtlistener",
		SourceKey:       sourceKey,
		Jurisdiction:    "us-fed",
		DocType:         "opinion",
		Title:           "Example v. Sample",
		Court:           "9th Cir.",
		PublishedDate:   "1996-05-01",
		CapturedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		RawSHA256:       "aaaa",
		CanonicalSHA256: "bbbb",
		RawPath:         "/blobs/raw/aaaa.bin",
		CanonicalPath:   "/blobs/canonical/bbbb.bin",
		License:         "public-domain",
	}
}

// applyIngest writes one complete ingestion for a document and returns
// its doc_id.
func applyIngest(t *testing.T, s *Store, doc types.Document, body string, citations []types.Citation) int64 {
	t.Helper()
	var docID int64
	err := s.WithIngestTx(context.Background(), doc.Source, doc.SourceKey, func(tx *IngestTx) error {
		id, err := tx.UpsertDocument(doc)
		if err != nil {
			return err
		}
		docID = id
		if err := tx.UpsertFTSEntry(id, doc.Title, doc.Court, body); err != nil {
			return err
		}
		for i := range citations {
			citations[i].FromDocID = id
		}
		if err := tx.ReplaceCitations(id, citations); err != nil {
			return err
		}
		_, err = tx.AppendProvenanceIfNew(types.ProvenanceEvent{
			DocID:            id,
			EventType:        "ingest",
			ToolVersionsJSON: `{"evident":"test"}`,
			InputsSHA256:     doc.RawSHA256,
			OutputsSHA256:    doc.CanonicalSHA256,
			Timestamp:        time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return docID
}

// --- upsert semantics ---

func TestUpsertDocumentPreservesDocID(t *testing.T) {
	s := testStore(t)

	doc := sampleDocument("op-1")
	first := applyIngest(t, s, doc, "first body", nil)

	doc.Title = "Example v. Sample (amended)"
	doc.CanonicalSHA256 = "cccc"
	second := applyIngest(t, s, doc, "second body", nil)

	if first != second {
		t.Errorf("re-ingest changed doc_id: %d then %d", first, second)
	}

	got, err := s.GetDocument(context.Background(), first)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Example v. Sample (amended)" {
		t.Errorf("title not updated: %q", got.Title)
	}
	if got.CanonicalSHA256 != "cccc" {
		t.Errorf("canonical hash not updated: %q", got.CanonicalSHA256)
	}
}

func TestUpsertDistinctKeysDistinctRows(t *testing.T) {
	s := testStore(t)

	a := applyIngest(t, s, sampleDocument("op-1"), "body a", nil)
	b := applyIngest(t, s, sampleDocument("op-2"), "body b", nil)
	if a == b {
		t.Error("distinct source keys collapsed to one doc_id")
	}
}

// --- atomicity ---

func TestIngestTxRollsBackOnError(t *testing.T) {
	s := testStore(t)

	err := s.WithIngestTx(context.Background(), "courtlistener", "op-err", func(tx *IngestTx) error {
		if _, err := tx.UpsertDocument(sampleDocument("op-err")); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want boom", err)
	}

	if _, err := s.GetDocumentByKey(context.Background(), "courtlistener", "op-err"); err == nil {
		t.Error("aborted ingest left a visible document row")
	}
}

// --- citations ---

func TestReplaceCitationsFullyReplaces(t *testing.T) {
	s := testStore(t)

	five, twenty := 5, 20
	docID := applyIngest(t, s, sampleDocument("op-1"), "body",
		[]types.Citation{
			{CiteText: "123 F.3d 456", NormalizedCite: "123 F.3d 456", StartOffset: &five, EndOffset: &twenty},
		})

	doc := sampleDocument("op-1")
	one, ten := 1, 10
	applyIngest(t, s, doc, "new body",
		[]types.Citation{
			{CiteText: "234 U.S. 789", NormalizedCite: "234 U.S. 789", StartOffset: &one, EndOffset: &ten},
		})

	got, err := s.Citations(context.Background(), docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d citations after replace, want 1", len(got))
	}
	if got[0].CiteText != "234 U.S. 789" {
		t.Errorf("citation = %q, want the replacement", got[0].CiteText)
	}
}

func TestCitationsNilOffsetsRoundTrip(t *testing.T) {
	s := testStore(t)

	docID := applyIngest(t, s, sampleDocument("op-1"), "body",
		[]types.Citation{
			{CiteText: "1 U.S. 1", NormalizedCite: "1 U.S. 1"},
		})

	got, err := s.Citations(context.Background(), docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d citations, want 1", len(got))
	}
	if got[0].StartOffset != nil || got[0].EndOffset != nil {
		t.Error("unknown offsets must round-trip as unknown, not zero")
	}
}

// --- provenance idempotency ---

func TestAppendProvenanceIfNew(t *testing.T) {
	s := testStore(t)
	docID := applyIngest(t, s, sampleDocument("op-1"), "body", nil)

	ev := types.ProvenanceEvent{
		DocID:            docID,
		EventType:        "ingest",
		ToolVersionsJSON: `{"evident":"test"}`,
		InputsSHA256:     "aaaa",
		OutputsSHA256:    "bbbb",
		Timestamp:        time.Now().UTC(),
	}

	// applyIngest already appended (docID, "ingest", "aaaa").
	err := s.WithIngestTx(context.Background(), "courtlistener", "op-1", func(tx *IngestTx) error {
		inserted, err := tx.AppendProvenanceIfNew(ev)
		if err != nil {
			return err
		}
		if inserted {
			t.Error("duplicate provenance event was inserted")
		}

		ev2 := ev
		ev2.InputsSHA256 = "dddd"
		inserted, err = tx.AppendProvenanceIfNew(ev2)
		if err != nil {
			return err
		}
		if !inserted {
			t.Error("event with new inputs hash was not inserted")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	events, err := s.ProvenanceEvents(context.Background(), docID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("got %d provenance events, want 2", len(events))
	}
}

// --- per-key serialization ---

func TestWithIngestTxSerializesSameKey(t *testing.T) {
	s := testStore(t)

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithIngestTx(context.Background(), "courtlistener", "contended", func(tx *IngestTx) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()

				_, err := tx.UpsertDocument(sampleDocument("contended"))
				return err
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("same-key ingestions overlapped: max concurrent = %d", maxActive)
	}
}

func TestWithIngestTxCancelledWaiter(t *testing.T) {
	s := testStore(t)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithIngestTx(context.Background(), "courtlistener", "held", func(tx *IngestTx) error {
			close(started)
			<-release
			_, err := tx.UpsertDocument(sampleDocument("held"))
			return err
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.WithIngestTx(ctx, "courtlistener", "held", func(tx *IngestTx) error { return nil })
	if !errors.Is(err, ErrIngestInProgress) {
		t.Errorf("err = %v, want ErrIngestInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestCitationRecordsRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	docID := applyIngest(t, s, sampleDocument("op-1"), "body text", nil)

	records := []types.CitationRecord{
		{
			AnalysisID: "a-1", DocumentID: docID, PageNumber: 2,
			TextStart: 40, TextEnd: 90, Snippet: "second snippet",
		},
		{
			AnalysisID: "a-1", DocumentID: docID, PageNumber: 1,
			TextStart: 10, TextEnd: 60, Snippet: "first snippet",
			AuthorityName: "Example v. Sample", AuthorityCitation: "123 F.3d 456",
		},
	}
	if err := s.SaveCitationRecords(ctx, records); err != nil {
		t.Fatalf("SaveCitationRecords: %v", err)
	}
	// A different analysis id stays isolated.
	if err := s.SaveCitationRecords(ctx, []types.CitationRecord{{
		AnalysisID: "a-2", DocumentID: docID, PageNumber: 1,
		TextStart: 0, TextEnd: 5, Snippet: "other",
	}}); err != nil {
		t.Fatalf("SaveCitationRecords: %v", err)
	}

	got, err := s.CitationRecords(ctx, "a-1")
	if err != nil {
		t.Fatalf("CitationRecords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	// Ordered by (document_id, text_start).
	if got[0].TextStart != 10 || got[1].TextStart != 40 {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[0].AuthorityName != "Example v. Sample" {
		t.Errorf("authority name = %q", got[0].AuthorityName)
	}
}

func TestSaveCitationRecordsEmpty(t *testing.T) {
	s := testStore(t)
	if err := s.SaveCitationRecords(context.Background(), nil); err != nil {
		t.Fatalf("SaveCitationRecords(nil): %v", err)
	}
}
