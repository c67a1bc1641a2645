// Copyright DTMBX, 2026. All rights reserved.

// Package store persists documents, citations, and provenance events in
// SQLite and serves ranked full-text retrieval over canonical text.
// Implements: prd004-document-store (R1-R5), prd005-retrieval (R1-R3);
//
//	docs/ARCHITECTURE § Document Store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "evident.db"
)

// ErrIngestInProgress reports that another writer holds the ingest lock
// for the same (source, source_key). The condition is retryable.
var ErrIngestInProgress = errors.New("ingest in progress for this source key")

// ErrDocumentNotFound reports a lookup for a doc_id or (source, source_key)
// with no matching row.
var ErrDocumentNotFound = errors.New("document not found")

// Store manages the document database. A document moves
// absent → ingested → re-ingested; the store never deletes.
type Store struct {
	db         *sql.DB
	locks      *keyedLock
	bodies     *BodyCache
	maxResults int
	minScore   float64
}

// Open opens or creates the document database at dataDir/index/evident.db
// and creates the schema if needed (R1.2). The body cache is owned by the
// caller so tests and embedding services can construct fresh instances.
func Open(cfg types.StoreConfig, bodies *BodyCache) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	s := &Store{
		db:         db,
		locks:      newKeyedLock(),
		bodies:     bodies,
		maxResults: maxResults,
		minScore:   cfg.MinScore,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			source_key TEXT NOT NULL,
			jurisdiction TEXT,
			doc_type TEXT,
			title TEXT,
			court TEXT,
			published_date TEXT,
			captured_at_utc TEXT NOT NULL,
			raw_sha256 TEXT NOT NULL,
			canonical_sha256 TEXT NOT NULL,
			raw_path TEXT NOT NULL,
			canonical_path TEXT NOT NULL,
			license TEXT,
			UNIQUE(source, source_key)
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			from_doc_id INTEGER NOT NULL REFERENCES documents(doc_id),
			cite_text TEXT NOT NULL,
			normalized_cite TEXT NOT NULL,
			start_offset INTEGER,
			end_offset INTEGER,
			target_hint TEXT,
			pinpoint TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_doc ON citations(from_doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_normalized ON citations(normalized_cite)`,
		`CREATE TABLE IF NOT EXISTS citation_records (
			analysis_id TEXT NOT NULL,
			document_id INTEGER NOT NULL REFERENCES documents(doc_id),
			page_number INTEGER NOT NULL,
			text_start INTEGER NOT NULL,
			text_end INTEGER NOT NULL,
			snippet TEXT NOT NULL,
			authority_name TEXT,
			authority_citation TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citation_records_analysis
			ON citation_records(analysis_id)`,
		`CREATE TABLE IF NOT EXISTS provenance_events (
			doc_id INTEGER NOT NULL REFERENCES documents(doc_id),
			event_type TEXT NOT NULL,
			tool_versions_json TEXT NOT NULL,
			inputs_sha256 TEXT NOT NULL,
			outputs_sha256 TEXT NOT NULL,
			timestamp_utc TEXT NOT NULL,
			UNIQUE(doc_id, event_type, inputs_sha256)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 index over canonical text, rowid-keyed by doc_id. Entries are
	// maintained explicitly inside the ingest transaction rather than by
	// triggers: the whole entry is replaced on every (re-)ingest.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='doc_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		if _, err := s.db.Exec(
			`CREATE VIRTUAL TABLE doc_fts USING fts5(title, court, body)`,
		); err != nil {
			return fmt.Errorf("creating FTS table: %w", err)
		}
	}

	return nil
}

// IngestTx is the handle through which one ingestion applies its writes.
// All four mutating operations run inside a single transaction opened by
// WithIngestTx; if any step fails none of the changes become visible.
type IngestTx struct {
	ctx     context.Context
	tx      *sql.Tx
	touched []int64
}

// WithIngestTx serializes on the (source, sourceKey) ingest lock, opens a
// transaction, runs fn, and commits. A second writer for the same key
// waits; if its context is cancelled while waiting it receives
// ErrIngestInProgress. Concurrent ingestions of different keys do not
// block each other (R4.1-R4.3).
func (s *Store) WithIngestTx(ctx context.Context, source, sourceKey string, fn func(*IngestTx) error) error {
	key := source + "\x00" + sourceKey
	if err := s.locks.acquire(ctx, key); err != nil {
		return err
	}
	defer s.locks.release(key)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	it := &IngestTx{ctx: ctx, tx: tx}
	if err := fn(it); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ingest: %w", err)
	}

	// Cached canonical bodies for the touched documents are now stale.
	if s.bodies != nil {
		for _, id := range it.touched {
			s.bodies.Invalidate(id)
		}
	}
	return nil
}

// UpsertDocument inserts the document row for an unseen
// (source, source_key) or updates the existing row in place. The returned
// doc_id is stable across re-ingestions; source and source_key are never
// rewritten once assigned (R1.3, identity is immutable).
func (t *IngestTx) UpsertDocument(doc types.Document) (int64, error) {
	var docID int64
	err := t.tx.QueryRowContext(t.ctx,
		`INSERT INTO documents (
			source, source_key, jurisdiction, doc_type, title, court,
			published_date, captured_at_utc, raw_sha256, canonical_sha256,
			raw_path, canonical_path, license)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source, source_key) DO UPDATE SET
			jurisdiction=excluded.jurisdiction, doc_type=excluded.doc_type,
			title=excluded.title, court=excluded.court,
			published_date=excluded.published_date,
			captured_at_utc=excluded.captured_at_utc,
			raw_sha256=excluded.raw_sha256,
			canonical_sha256=excluded.canonical_sha256,
			raw_path=excluded.raw_path, canonical_path=excluded.canonical_path,
			license=excluded.license
		 RETURNING doc_id`,
		doc.Source, doc.SourceKey, doc.Jurisdiction, doc.DocType, doc.Title,
		doc.Court, doc.PublishedDate,
		doc.CapturedAt.UTC().Format(time.RFC3339Nano),
		doc.RawSHA256, doc.CanonicalSHA256, doc.RawPath, doc.CanonicalPath,
		doc.License,
	).Scan(&docID)
	if err != nil {
		return 0, fmt.Errorf("upserting document: %w", err)
	}

	t.touched = append(t.touched, docID)
	return docID, nil
}

// UpsertFTSEntry replaces the full-text entry for docID with the new
// canonical text (R2.1).
func (t *IngestTx) UpsertFTSEntry(docID int64, title, court, body string) error {
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM doc_fts WHERE rowid = ?`, docID); err != nil {
		return fmt.Errorf("deleting FTS entry: %w", err)
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO doc_fts (rowid, title, court, body) VALUES (?, ?, ?, ?)`,
		docID, title, court, body); err != nil {
		return fmt.Errorf("inserting FTS entry: %w", err)
	}
	return nil
}

// ReplaceCitations deletes and reinserts the citation rows for docID.
// Citations are never partially updated (R3.1).
func (t *IngestTx) ReplaceCitations(docID int64, citations []types.Citation) error {
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM citations WHERE from_doc_id = ?`, docID); err != nil {
		return fmt.Errorf("deleting old citations: %w", err)
	}

	stmt, err := t.tx.PrepareContext(t.ctx,
		`INSERT INTO citations (
			from_doc_id, cite_text, normalized_cite,
			start_offset, end_offset, target_hint, pinpoint)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing citation insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range citations {
		if _, err := stmt.ExecContext(t.ctx,
			docID, c.CiteText, c.NormalizedCite,
			c.StartOffset, c.EndOffset, c.TargetHint, c.Pinpoint,
		); err != nil {
			return fmt.Errorf("inserting citation %q: %w", c.CiteText, err)
		}
	}
	return nil
}

// AppendProvenanceIfNew appends an audit event unless one already exists
// for the same (doc_id, event_type, inputs_sha256). It reports whether a
// row was inserted (R5.2).
func (t *IngestTx) AppendProvenanceIfNew(ev types.ProvenanceEvent) (bool, error) {
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT OR IGNORE INTO provenance_events (
			doc_id, event_type, tool_versions_json,
			inputs_sha256, outputs_sha256, timestamp_utc)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.DocID, ev.EventType, ev.ToolVersionsJSON,
		ev.InputsSHA256, ev.OutputsSHA256,
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("appending provenance event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking provenance insert: %w", err)
	}
	return n > 0, nil
}

// GetDocument returns the document row for docID.
func (s *Store) GetDocument(ctx context.Context, docID int64) (*types.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		`SELECT doc_id, source, source_key, jurisdiction, doc_type, title,
			court, published_date, captured_at_utc, raw_sha256,
			canonical_sha256, raw_path, canonical_path, license
		 FROM documents WHERE doc_id = ?`, docID))
}

// GetDocumentByKey returns the document row for a (source, source_key).
func (s *Store) GetDocumentByKey(ctx context.Context, source, sourceKey string) (*types.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		`SELECT doc_id, source, source_key, jurisdiction, doc_type, title,
			court, published_date, captured_at_utc, raw_sha256,
			canonical_sha256, raw_path, canonical_path, license
		 FROM documents WHERE source = ? AND source_key = ?`, source, sourceKey))
}

func scanDocument(row *sql.Row) (*types.Document, error) {
	var (
		d          types.Document
		jur, dt    sql.NullString
		title      sql.NullString
		court, pub sql.NullString
		lic        sql.NullString
		captured   string
	)
	err := row.Scan(&d.DocID, &d.Source, &d.SourceKey, &jur, &dt, &title,
		&court, &pub, &captured, &d.RawSHA256, &d.CanonicalSHA256,
		&d.RawPath, &d.CanonicalPath, &lic)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
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
	return &d, nil
}

// Citations returns the stored citation rows for docID in their stable
// extraction order.
func (s *Store) Citations(ctx context.Context, docID int64) ([]types.Citation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_doc_id, cite_text, normalized_cite, start_offset,
			end_offset, target_hint, pinpoint
		 FROM citations WHERE from_doc_id = ?
		 ORDER BY COALESCE(start_offset, 0), cite_text`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var citations []types.Citation
	for rows.Next() {
		var (
			c          types.Citation
			start, end sql.NullInt64
			hint, pin  sql.NullString
		)
		if err := rows.Scan(&c.FromDocID, &c.CiteText, &c.NormalizedCite,
			&start, &end, &hint, &pin); err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		if start.Valid {
			v := int(start.Int64)
			c.StartOffset = &v
		}
		if end.Valid {
			v := int(end.Int64)
			c.EndOffset = &v
		}
		c.TargetHint = hint.String
		c.Pinpoint = pin.String
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

// SaveCitationRecords persists validated analysis citations. Records are
// append-only; an analysis is never re-run under the same id.
func (s *Store) SaveCitationRecords(ctx context.Context, records []types.CitationRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO citation_records (
			analysis_id, document_id, page_number, text_start, text_end,
			snippet, authority_name, authority_citation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing citation record insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.AnalysisID, r.DocumentID, r.PageNumber, r.TextStart, r.TextEnd,
			r.Snippet, r.AuthorityName, r.AuthorityCitation,
		); err != nil {
			return fmt.Errorf("inserting citation record: %w", err)
		}
	}
	return tx.Commit()
}

// CitationRecords returns the persisted citations for one analysis.
func (s *Store) CitationRecords(ctx context.Context, analysisID string) ([]types.CitationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT analysis_id, document_id, page_number, text_start, text_end,
			snippet, authority_name, authority_citation
		 FROM citation_records WHERE analysis_id = ?
		 ORDER BY document_id, text_start`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("querying citation records: %w", err)
	}
	defer rows.Close()

	var records []types.CitationRecord
	for rows.Next() {
		var (
			r          types.CitationRecord
			name, cite sql.NullString
		)
		if err := rows.Scan(&r.AnalysisID, &r.DocumentID, &r.PageNumber,
			&r.TextStart, &r.TextEnd, &r.Snippet, &name, &cite); err != nil {
			return nil, fmt.Errorf("scanning citation record: %w", err)
		}
		r.AuthorityName = name.String
		r.AuthorityCitation = cite.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// ProvenanceEvents returns the audit log for docID, oldest first.
func (s *Store) ProvenanceEvents(ctx context.Context, docID int64) ([]types.ProvenanceEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, event_type, tool_versions_json, inputs_sha256,
			outputs_sha256, timestamp_utc
		 FROM provenance_events WHERE doc_id = ? ORDER BY timestamp_utc`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying provenance events: %w", err)
	}
	defer rows.Close()

	var events []types.ProvenanceEvent
	for rows.Next() {
		var (
			ev types.ProvenanceEvent
			ts string
		)
		if err := rows.Scan(&ev.DocID, &ev.EventType, &ev.ToolVersionsJSON,
			&ev.InputsSHA256, &ev.OutputsSHA256, &ts); err != nil {
			return nil, fmt.Errorf("scanning provenance event: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			ev.Timestamp = t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
