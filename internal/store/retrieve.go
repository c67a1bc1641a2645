// Copyright DTMBX, 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

// SearchRow is one ranked full-text match. Rank is the raw FTS5 bm25
// rank (negative, lower is better); Retrieve converts it to a positive
// relevance score.
type SearchRow struct {
	DocID int64
	Title string
	Court string
	Rank  float64
}

// Search runs a full-text query over the canonical text index and
// returns ranked rows with doc_id, best first (R2.2).
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchRow, error) {
	if limit <= 0 {
		limit = s.maxResults
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.doc_id, d.title, d.court, doc_fts.rank
		 FROM doc_fts
		 JOIN documents d ON d.doc_id = doc_fts.rowid
		 WHERE doc_fts MATCH ?
		 ORDER BY doc_fts.rank
		 LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var results []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.DocID, &r.Title, &r.Court, &r.Rank); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// snippetWindow is the character span taken on each side of a match when
// building a passage snippet.
const snippetWindow = 200

// Retrieve runs the query and projects each match into a citation-ready
// Passage: identity from the document row, location and snippet from the
// canonical text. The join against documents guarantees no passage
// references a missing document; passages below the relevance floor or
// missing identity fields are dropped rather than returned (R2.3, R3.2).
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]types.Passage, error) {
	matches, err := s.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	terms := queryTerms(query)

	var passages []types.Passage
	for _, m := range matches {
		score := -m.Rank
		if score < s.minScore {
			continue
		}

		doc, body, err := s.documentWithBody(ctx, m.DocID)
		if err != nil {
			// A document deleted between the index query and here must
			// not surface as a dangling passage.
			if errors.Is(err, ErrDocumentNotFound) {
				continue
			}
			return nil, err
		}

		start, end, at := locateMatch(body, terms)
		p := types.Passage{
			DocumentID:          doc.DocID,
			SHA256:              doc.CanonicalSHA256,
			Filename:            filepath.Base(doc.RawPath),
			StoragePathOriginal: doc.RawPath,
			SourceSystem:        doc.Source,
			PageNumber:          1 + strings.Count(body[:at], "\f"),
			TextStart:           start,
			TextEnd:             end,
			Snippet:             body[start:end],
			Score:               score,
		}
		if !p.Valid() {
			continue
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// documentWithBody returns the document row and its canonical body as a
// consistent pair. A cached body is trusted only while its content hash
// still matches the row; otherwise one joined statement reads both, so a
// retrieval racing a re-ingest commit sees either the old document with
// its old text or the new one with its new text, never a mix.
func (s *Store) documentWithBody(ctx context.Context, docID int64) (*types.Document, string, error) {
	if s.bodies != nil {
		if sha, body, ok := s.bodies.Get(docID); ok {
			doc, err := s.GetDocument(ctx, docID)
			if err != nil {
				return nil, "", err
			}
			if doc.CanonicalSHA256 == sha {
				return doc, body, nil
			}
		}
	}

	var (
		d          types.Document
		jur, dt    sql.NullString
		title      sql.NullString
		court, pub sql.NullString
		lic        sql.NullString
		captured   string
		body       string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT d.doc_id, d.source, d.source_key, d.jurisdiction, d.doc_type,
			d.title, d.court, d.published_date, d.captured_at_utc,
			d.raw_sha256, d.canonical_sha256, d.raw_path, d.canonical_path,
			d.license, f.body
		 FROM documents d
		 JOIN doc_fts f ON f.rowid = d.doc_id
		 WHERE d.doc_id = ?`, docID,
	).Scan(&d.DocID, &d.Source, &d.SourceKey, &jur, &dt, &title, &court,
		&pub, &captured, &d.RawSHA256, &d.CanonicalSHA256, &d.RawPath,
		&d.CanonicalPath, &lic, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrDocumentNotFound
		}
		return nil, "", fmt.Errorf("reading document %d with body: %w", docID, err)
	}

	d.Jurisdiction = jur.String
	d.DocType = dt.String
	d.Title = title.String
	d.Court = court.String
	d.PublishedDate = pub.String
	d.License = lic.String
	if t, perr := time.Parse(time.RFC3339Nano, captured); perr == nil {
		d.CapturedAt = t
	}

	if s.bodies != nil {
		s.bodies.Put(docID, d.CanonicalSHA256, body)
	}
	return &d, body, nil
}

// queryTerms extracts bare search terms from an FTS query string,
// dropping operators and quoting.
func queryTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(query) {
		f = strings.Trim(f, `"'()*`)
		switch f {
		case "", "AND", "OR", "NOT", "NEAR":
			continue
		}
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}

// locateMatch finds the earliest occurrence of any query term in body
// and returns a snippet span around it, expanded to word boundaries,
// plus the match offset itself (the snippet window may start on an
// earlier page than the match). When no term occurs literally (stemmed
// matches), the span is the head of the body.
func locateMatch(body string, terms []string) (start, end, at int) {
	lower := strings.ToLower(body)

	at = -1
	termLen := 0
	for _, term := range terms {
		if i := strings.Index(lower, term); i >= 0 && (at < 0 || i < at) {
			at = i
			termLen = len(term)
		}
	}
	if at < 0 {
		at = 0
	}

	start = at - snippetWindow
	if start < 0 {
		start = 0
	}
	end = at + termLen + snippetWindow
	if end > len(body) {
		end = len(body)
	}

	// Trim to word boundaries like the source text reads.
	if start > 0 {
		if i := strings.IndexByte(body[start:end], ' '); i >= 0 && i < snippetWindow {
			start += i + 1
		}
	}
	if end < len(body) {
		if i := strings.LastIndexByte(body[start:end], ' '); i >= 0 && end-(start+i) < snippetWindow {
			end = start + i
		}
	}

	// Never split a multi-byte rune at either edge.
	for start > 0 && !utf8.RuneStart(body[start]) {
		start--
	}
	for end > start && end < len(body) && !utf8.RuneStart(body[end]) {
		end--
	}
	return start, end, at
}
