// ABOUTME: Session persistence for the memory manager
// ABOUTME: Sessions move active -> closed exactly once
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harper/riskmem/internal/models"
)

// SessionStore handles session persistence
type SessionStore struct {
	q execer
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(q execer) *SessionStore {
	return &SessionStore{q: q}
}

// Create inserts a new session
func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sessions (id, state, created_at, closed_at)
		VALUES (?, ?, ?, ?)
	`, sess.SessionID, string(sess.State), toNanos(sess.CreatedAt), nullTime(sess.ClosedAt))
	return err
}

// Get retrieves a session by ID
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	var (
		sess     models.Session
		state    string
		created  int64
		closedAt sql.NullInt64
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, state, created_at, closed_at
		FROM sessions
		WHERE id = ?
	`, id).Scan(&sess.SessionID, &state, &created, &closedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, models.ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}
	sess.State = models.SessionState(state)
	sess.CreatedAt = fromNanos(created)
	sess.ClosedAt = timePtr(closedAt)
	return &sess, nil
}

// Close marks an active session closed. It reports whether the state changed.
func (s *SessionStore) Close(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sessions SET state = ?, closed_at = ?
		WHERE id = ? AND state = ?
	`, string(models.SessionClosed), toNanos(at), id, string(models.SessionActive))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
