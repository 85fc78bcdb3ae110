// ABOUTME: Memory entry persistence for short-term and long-term scopes
// ABOUTME: Entries are soft-deleted through expired_at and never removed
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harper/riskmem/internal/models"
)

// MemoryStore handles memory entry persistence
type MemoryStore struct {
	q execer
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore(q execer) *MemoryStore {
	return &MemoryStore{q: q}
}

const memoryColumns = `id, scope, kind, session_id, content, finding_id, prov_session_id, prov_query,
	pinned, created_at, expires_at, expired_at, expire_reason, promoted_at, last_used_seq`

// Insert stores a new entry
func (s *MemoryStore) Insert(ctx context.Context, e *models.MemoryEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO memory_entries (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.EntryID, string(e.Scope), string(e.Kind), nullString(e.SessionID), e.Content,
		nullString(e.FindingID), nullString(e.Provenance.SessionID), nullString(e.Provenance.Query),
		e.Pinned, toNanos(e.CreatedAt), nullTime(e.ExpiresAt), nullTime(e.ExpiredAt),
		nullString(e.ExpireReason), nullTime(e.PromotedAt), e.LastUsedSeq)
	return err
}

// Get retrieves an entry by ID regardless of expiry
func (s *MemoryStore) Get(ctx context.Context, id string) (*models.MemoryEntry, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memory_entries WHERE id = ?`, id)
	e, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, models.ErrMemoryNotFound)
	}
	return e, err
}

// ListLive returns unexpired entries of a scope, most recent first. An empty
// sessionID lists every session's entries.
func (s *MemoryStore) ListLive(ctx context.Context, scope models.MemoryScope, sessionID string, now time.Time) ([]models.MemoryEntry, error) {
	query := `SELECT ` + memoryColumns + ` FROM memory_entries
		WHERE scope = ? AND expired_at IS NULL AND (expires_at IS NULL OR expires_at > ?)`
	args := []any{string(scope), toNanos(now)}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.MemoryEntry
	for rows.Next() {
		e, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListAll returns every entry of a scope including expired ones, oldest first
func (s *MemoryStore) ListAll(ctx context.Context, scope models.MemoryScope) ([]models.MemoryEntry, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+memoryColumns+` FROM memory_entries
		WHERE scope = ? ORDER BY created_at ASC, id ASC`, string(scope))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.MemoryEntry
	for rows.Next() {
		e, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// NextSeq returns the next value of the use sequence. Entries are never
// deleted so the maximum only grows.
func (s *MemoryStore) NextSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(last_used_seq), 0) + 1 FROM memory_entries`).Scan(&seq)
	return seq, err
}

// Touch stamps entries with a use sequence value
func (s *MemoryStore) Touch(ctx context.Context, ids []string, seq int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, seq)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.q.ExecContext(ctx, `UPDATE memory_entries SET last_used_seq = ? WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// Promote moves an unexpired short-term entry to long-term. It reports whether a row changed.
func (s *MemoryStore) Promote(ctx context.Context, id string, at time.Time, seq int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE memory_entries SET scope = ?, promoted_at = ?, last_used_seq = ?
		WHERE id = ? AND scope = ? AND expired_at IS NULL
	`, string(models.ScopeLongTerm), toNanos(at), seq, id, string(models.ScopeShortTerm))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Expire soft-deletes an entry. It reports whether a row changed.
func (s *MemoryStore) Expire(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE memory_entries SET expired_at = ?, expire_reason = ?
		WHERE id = ? AND expired_at IS NULL
	`, toNanos(at), reason, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExpireDue stamps entries whose expires_at has passed as expired at that time
func (s *MemoryStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE memory_entries SET expired_at = expires_at, expire_reason = ?
		WHERE expired_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?
	`, models.ExpireTTL, toNanos(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireSession soft-deletes the remaining short-term entries of a session
func (s *MemoryStore) ExpireSession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE memory_entries SET expired_at = ?, expire_reason = ?
		WHERE session_id = ? AND scope = ? AND expired_at IS NULL
	`, toNanos(at), models.ExpireSessionClosed, sessionID, string(models.ScopeShortTerm))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountLiveLongTerm counts long-term entries that still count against capacity
func (s *MemoryStore) CountLiveLongTerm(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memory_entries
		WHERE scope = ? AND expired_at IS NULL AND (expires_at IS NULL OR expires_at > ?)
	`, string(models.ScopeLongTerm), toNanos(now)).Scan(&n)
	return n, err
}

// LeastRecentlyUsed returns the IDs of the n live long-term entries with the
// lowest use sequence, ties broken by creation time then ID.
func (s *MemoryStore) LeastRecentlyUsed(ctx context.Context, now time.Time, n int) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id FROM memory_entries
		WHERE scope = ? AND expired_at IS NULL AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY last_used_seq ASC, created_at ASC, id ASC
		LIMIT ?
	`, string(models.ScopeLongTerm), toNanos(now), n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(r rowScanner) (*models.MemoryEntry, error) {
	var (
		e                                models.MemoryEntry
		scope, kind                      string
		sessionID, findingID, provSess   sql.NullString
		provQuery, reason                sql.NullString
		created                          int64
		expiresAt, expiredAt, promotedAt sql.NullInt64
	)
	err := r.Scan(&e.EntryID, &scope, &kind, &sessionID, &e.Content, &findingID, &provSess, &provQuery,
		&e.Pinned, &created, &expiresAt, &expiredAt, &reason, &promotedAt, &e.LastUsedSeq)
	if err != nil {
		return nil, err
	}
	e.Scope = models.MemoryScope(scope)
	e.Kind = models.MemoryKind(kind)
	e.SessionID = sessionID.String
	e.FindingID = findingID.String
	e.Provenance = models.Provenance{SessionID: provSess.String, Query: provQuery.String}
	e.CreatedAt = fromNanos(created)
	e.ExpiresAt = timePtr(expiresAt)
	e.ExpiredAt = timePtr(expiredAt)
	e.ExpireReason = reason.String
	e.PromotedAt = timePtr(promotedAt)
	return &e, nil
}
