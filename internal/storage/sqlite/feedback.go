// ABOUTME: Append-only feedback record persistence and section association weights
// ABOUTME: Triggers reject UPDATE and DELETE on feedback rows
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/harper/riskmem/internal/models"
)

// FeedbackStore handles feedback persistence
type FeedbackStore struct {
	q execer
}

// NewFeedbackStore creates a new FeedbackStore
func NewFeedbackStore(q execer) *FeedbackStore {
	return &FeedbackStore{q: q}
}

const feedbackColumns = `seq, id, finding_id, verdict, rationale, author, edited_description,
	edited_severity, resulting_finding_id, created_at`

// Append stores a record and fills in its sequence number
func (s *FeedbackStore) Append(ctx context.Context, r *models.FeedbackRecord) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO feedback (id, finding_id, verdict, rationale, author, edited_description,
			edited_severity, resulting_finding_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.FeedbackID, r.FindingID, string(r.Verdict), nullString(r.Rationale), r.Author,
		nullString(r.EditedDescription), nullString(string(r.EditedSeverity)),
		nullString(r.ResultingFindingID), toNanos(r.CreatedAt))
	if err != nil {
		return err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.Seq = seq
	return nil
}

// ListAsOf returns every record created at or before asOf, in sequence order
func (s *FeedbackStore) ListAsOf(ctx context.Context, asOf time.Time) ([]models.FeedbackRecord, error) {
	return s.list(ctx, `WHERE created_at <= ?`, toNanos(asOf))
}

// ListByFinding returns a finding's records in sequence order
func (s *FeedbackStore) ListByFinding(ctx context.Context, findingID string) ([]models.FeedbackRecord, error) {
	return s.list(ctx, `WHERE finding_id = ?`, findingID)
}

func (s *FeedbackStore) list(ctx context.Context, where string, args ...any) ([]models.FeedbackRecord, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+feedbackColumns+` FROM feedback `+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []models.FeedbackRecord
	for rows.Next() {
		var (
			r                                models.FeedbackRecord
			verdict                          string
			rationale, editedDesc, editedSev sql.NullString
			resulting                        sql.NullString
			created                          int64
		)
		if err := rows.Scan(&r.Seq, &r.FeedbackID, &r.FindingID, &verdict, &rationale, &r.Author,
			&editedDesc, &editedSev, &resulting, &created); err != nil {
			return nil, err
		}
		r.Verdict = models.Verdict(verdict)
		r.Rationale = rationale.String
		r.EditedDescription = editedDesc.String
		r.EditedSeverity = models.Severity(editedSev.String)
		r.ResultingFindingID = resulting.String
		r.CreatedAt = fromNanos(created)
		records = append(records, r)
	}
	return records, rows.Err()
}

// AssociationStore holds cumulative feedback weights per section
type AssociationStore struct {
	q execer
}

// NewAssociationStore creates a new AssociationStore
func NewAssociationStore(q execer) *AssociationStore {
	return &AssociationStore{q: q}
}

// Adjust adds delta to a section's weight
func (s *AssociationStore) Adjust(ctx context.Context, sectionID string, delta float64, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO context_associations (section_id, weight, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(section_id) DO UPDATE SET
			weight = context_associations.weight + excluded.weight,
			updated_at = excluded.updated_at
	`, sectionID, delta, toNanos(at))
	return err
}

// Weights returns the weights of the given sections; absent sections are omitted
func (s *AssociationStore) Weights(ctx context.Context, sectionIDs []string) (map[string]float64, error) {
	weights := make(map[string]float64, len(sectionIDs))
	if len(sectionIDs) == 0 {
		return weights, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sectionIDs)), ",")
	args := make([]any, len(sectionIDs))
	for i, id := range sectionIDs {
		args[i] = id
	}

	rows, err := s.q.QueryContext(ctx, `SELECT section_id, weight FROM context_associations WHERE section_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id string
			w  float64
		)
		if err := rows.Scan(&id, &w); err != nil {
			return nil, err
		}
		weights[id] = w
	}
	return weights, rows.Err()
}
