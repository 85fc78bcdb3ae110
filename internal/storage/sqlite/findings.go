// ABOUTME: Risk finding persistence with guarded state transitions
// ABOUTME: Rows are never deleted; a trigger rejects DELETE
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harper/riskmem/internal/models"
)

// FindingStore handles finding persistence
type FindingStore struct {
	q execer
}

// NewFindingStore creates a new FindingStore
func NewFindingStore(q execer) *FindingStore {
	return &FindingStore{q: q}
}

const findingColumns = `id, session_id, query, description, severity, confidence, context_refs,
	state, supersedes_id, superseded_by, created_at, updated_at`

// Insert stores a new finding
func (s *FindingStore) Insert(ctx context.Context, f *models.RiskFinding) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	refsJSON, err := json.Marshal(f.ContextRefs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO findings (`+findingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.FindingID, f.SessionID, f.Query, f.Description, string(f.Severity), f.Confidence,
		string(refsJSON), string(f.State), nullString(f.SupersedesID), nullString(f.SupersededBy),
		toNanos(f.CreatedAt), toNanos(f.UpdatedAt))
	return err
}

// Get retrieves a finding by ID
func (s *FindingStore) Get(ctx context.Context, id string) (*models.RiskFinding, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+findingColumns+` FROM findings WHERE id = ?`, id)
	f, err := scanFinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, models.ErrFindingNotFound)
	}
	return f, err
}

// Transition moves a finding out of a non-terminal state. It reports false when
// the finding was already rejected or superseded.
func (s *FindingStore) Transition(ctx context.Context, id string, to models.FindingState, supersededBy string, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE findings SET state = ?, superseded_by = COALESCE(?, superseded_by), updated_at = ?
		WHERE id = ? AND state NOT IN (?, ?)
	`, string(to), nullString(supersededBy), toNanos(at), id,
		string(models.FindingRejected), string(models.FindingSuperseded))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// List returns findings matching the filter, newest first
func (s *FindingStore) List(ctx context.Context, filter models.FindingFilter) ([]models.RiskFinding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE 1 = 1`
	var args []any
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var findings []models.RiskFinding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}
		findings = append(findings, *f)
	}
	return findings, rows.Err()
}

func scanFinding(r rowScanner) (*models.RiskFinding, error) {
	var (
		f                      models.RiskFinding
		severity, state        string
		refsJSON               sql.NullString
		supersedes, supersedBy sql.NullString
		created, updated       int64
	)
	err := r.Scan(&f.FindingID, &f.SessionID, &f.Query, &f.Description, &severity, &f.Confidence,
		&refsJSON, &state, &supersedes, &supersedBy, &created, &updated)
	if err != nil {
		return nil, err
	}
	f.Severity = models.Severity(severity)
	f.State = models.FindingState(state)
	f.SupersedesID = supersedes.String
	f.SupersededBy = supersedBy.String
	f.CreatedAt = fromNanos(created)
	f.UpdatedAt = fromNanos(updated)
	if refsJSON.Valid && refsJSON.String != "" && refsJSON.String != "null" {
		if err := json.Unmarshal([]byte(refsJSON.String), &f.ContextRefs); err != nil {
			return nil, fmt.Errorf("finding %s: bad context refs: %w", f.FindingID, err)
		}
	}
	return &f, nil
}
