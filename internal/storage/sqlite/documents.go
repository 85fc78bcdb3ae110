// ABOUTME: Document, section and chunk persistence for the parent and chunk stores
// ABOUTME: Deleting a document cascades to its sections, chunks and embeddings
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harper/riskmem/internal/models"
)

// DocumentStore handles document persistence
type DocumentStore struct {
	q execer
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(q execer) *DocumentStore {
	return &DocumentStore{q: q}
}

// Save inserts a document. Callers replace an existing document by deleting it first.
func (s *DocumentStore) Save(ctx context.Context, doc *models.Document) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO documents (id, title, source, body, metadata, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Title, nullString(doc.Source), doc.Body, string(metaJSON), toNanos(doc.IngestedAt))
	return err
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	var (
		doc      models.Document
		source   sql.NullString
		metaJSON sql.NullString
		ingested int64
	)

	err := s.q.QueryRowContext(ctx, `
		SELECT id, title, source, body, metadata, ingested_at
		FROM documents
		WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Title, &source, &doc.Body, &metaJSON, &ingested)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, models.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, err
	}

	doc.Source = source.String
	doc.IngestedAt = fromNanos(ingested)
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		if err := json.Unmarshal([]byte(metaJSON.String), &doc.Metadata); err != nil {
			doc.Metadata = nil
		}
	}
	return &doc, nil
}

// Exists reports whether a document with the ID is stored
func (s *DocumentStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// Delete removes a document; sections, chunks and embeddings cascade
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, models.ErrDocumentNotFound)
	}
	return nil
}

// List returns all documents without bodies, newest first
func (s *DocumentStore) List(ctx context.Context) ([]models.Document, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, title, source, ingested_at
		FROM documents
		ORDER BY ingested_at DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docs []models.Document
	for rows.Next() {
		var (
			doc      models.Document
			source   sql.NullString
			ingested int64
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &source, &ingested); err != nil {
			return nil, err
		}
		doc.Source = source.String
		doc.IngestedAt = fromNanos(ingested)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SectionStore handles parent section persistence
type SectionStore struct {
	q execer
}

// NewSectionStore creates a new SectionStore
func NewSectionStore(q execer) *SectionStore {
	return &SectionStore{q: q}
}

// Save inserts a section
func (s *SectionStore) Save(ctx context.Context, sec *models.Section) error {
	if err := sec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sections (id, document_id, ordinal, start_offset, end_offset, text, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sec.SectionID, sec.DocumentID, sec.Ordinal, sec.Start, sec.End, sec.Text, toNanos(sec.IngestedAt))
	return err
}

// Get retrieves a section by ID
func (s *SectionStore) Get(ctx context.Context, id string) (*models.Section, error) {
	var (
		sec      models.Section
		ingested int64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, document_id, ordinal, start_offset, end_offset, text, ingested_at
		FROM sections
		WHERE id = ?
	`, id).Scan(&sec.SectionID, &sec.DocumentID, &sec.Ordinal, &sec.Start, &sec.End, &sec.Text, &ingested)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	sec.IngestedAt = fromNanos(ingested)
	return &sec, nil
}

// ListByDocument returns a document's sections in order
func (s *SectionStore) ListByDocument(ctx context.Context, documentID string) ([]models.Section, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, document_id, ordinal, start_offset, end_offset, text, ingested_at
		FROM sections
		WHERE document_id = ?
		ORDER BY ordinal ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sections []models.Section
	for rows.Next() {
		var (
			sec      models.Section
			ingested int64
		)
		if err := rows.Scan(&sec.SectionID, &sec.DocumentID, &sec.Ordinal, &sec.Start, &sec.End, &sec.Text, &ingested); err != nil {
			return nil, err
		}
		sec.IngestedAt = fromNanos(ingested)
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// ChunkStore handles chunk persistence
type ChunkStore struct {
	q execer
}

// NewChunkStore creates a new ChunkStore
func NewChunkStore(q execer) *ChunkStore {
	return &ChunkStore{q: q}
}

// Save inserts a chunk
func (s *ChunkStore) Save(ctx context.Context, c *models.Chunk) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO chunks (id, section_id, document_id, ordinal, start_offset, end_offset, text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ChunkID, c.SectionID, c.DocumentID, c.Ordinal, c.Start, c.End, c.Text)
	return err
}

// Get retrieves a chunk by ID
func (s *ChunkStore) Get(ctx context.Context, id string) (*models.Chunk, error) {
	var c models.Chunk
	err := s.q.QueryRowContext(ctx, `
		SELECT id, section_id, document_id, ordinal, start_offset, end_offset, text
		FROM chunks
		WHERE id = ?
	`, id).Scan(&c.ChunkID, &c.SectionID, &c.DocumentID, &c.Ordinal, &c.Start, &c.End, &c.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListBySection returns a section's chunks in order
func (s *ChunkStore) ListBySection(ctx context.Context, sectionID string) ([]models.Chunk, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, section_id, document_id, ordinal, start_offset, end_offset, text
		FROM chunks
		WHERE section_id = ?
		ORDER BY ordinal ASC
	`, sectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.SectionID, &c.DocumentID, &c.Ordinal, &c.Start, &c.End, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
