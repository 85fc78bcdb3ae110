// ABOUTME: Unified Storage layer that wraps all SQLite stores
// ABOUTME: Provides transactional access so multi-store writes commit together
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Stores groups every per-entity store bound to one connection or transaction
type Stores struct {
	Documents    *DocumentStore
	Sections     *SectionStore
	Chunks       *ChunkStore
	Embeddings   *EmbeddingStore
	Sessions     *SessionStore
	Memories     *MemoryStore
	Findings     *FindingStore
	Feedback     *FeedbackStore
	Associations *AssociationStore
}

func newStores(q execer) *Stores {
	return &Stores{
		Documents:    NewDocumentStore(q),
		Sections:     NewSectionStore(q),
		Chunks:       NewChunkStore(q),
		Embeddings:   NewEmbeddingStore(q),
		Sessions:     NewSessionStore(q),
		Memories:     NewMemoryStore(q),
		Findings:     NewFindingStore(q),
		Feedback:     NewFeedbackStore(q),
		Associations: NewAssociationStore(q),
	}
}

// Storage manages all persistent data using SQLite
type Storage struct {
	*Stores
	db *DB
}

// NewStorage initializes storage at the default XDG path
func NewStorage() (*Storage, error) {
	return NewStorageWithPath(DefaultDBPath())
}

// NewStorageWithPath initializes storage with a custom database path
func NewStorageWithPath(dbPath string) (*Storage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Storage{Stores: newStores(db), db: db}, nil
}

// NewStorageInMemory creates an in-memory storage (for testing)
func NewStorageInMemory() (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return &Storage{Stores: newStores(db), db: db}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database
func (s *Storage) DB() *DB {
	return s.db
}

// InTx runs fn with stores bound to a single transaction. The transaction
// commits when fn returns nil and rolls back otherwise. fn must only use the
// stores it is given.
func (s *Storage) InTx(ctx context.Context, fn func(tx *Stores) error) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(newStores(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ execer = (*sql.Tx)(nil)
var _ execer = (*DB)(nil)
