// ABOUTME: FeedbackLoop applies expert verdicts to findings and remembers them
// ABOUTME: Each submission is one transaction: state change, audit record, memory, association weights
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harper/riskmem/internal/metrics"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
	"github.com/harper/riskmem/internal/util"
)

// FeedbackLoop records expert corrections
type FeedbackLoop struct {
	store  *sqlite.Storage
	memory *MemoryManager
	locks  *util.KeyedMutex
	logger *log.Logger
	now    func() time.Time
}

// NewFeedbackLoop creates a FeedbackLoop
func NewFeedbackLoop(store *sqlite.Storage, memory *MemoryManager) *FeedbackLoop {
	return &FeedbackLoop{
		store:  store,
		memory: memory,
		locks:  util.NewKeyedMutex(),
		logger: log.WithPrefix("feedback"),
		now:    time.Now,
	}
}

// Submit applies a verdict. Rejected and superseded findings accept no further feedback.
func (fl *FeedbackLoop) Submit(ctx context.Context, in models.FeedbackInput) (*models.FeedbackResult, error) {
	if err := validateFeedback(&in); err != nil {
		return nil, err
	}

	unlock := fl.locks.Lock(in.FindingID)
	defer unlock()

	var result *models.FeedbackResult
	err := fl.store.InTx(ctx, func(tx *sqlite.Stores) error {
		finding, err := tx.Findings.Get(ctx, in.FindingID)
		if err != nil {
			return err
		}
		if finding.State.IsTerminal() {
			return fmt.Errorf("%w: finding %s is %s", models.ErrInvalidTransition, finding.FindingID, finding.State)
		}

		now := fl.now().UTC()
		record := models.FeedbackRecord{
			FeedbackID:        "fb_" + uuid.New().String(),
			FindingID:         finding.FindingID,
			Verdict:           in.Verdict,
			Rationale:         in.Rationale,
			Author:            in.Author,
			EditedDescription: in.EditedDescription,
			EditedSeverity:    in.EditedSeverity,
			CreatedAt:         now,
		}

		var newFinding *models.RiskFinding
		switch in.Verdict {
		case models.VerdictAccepted:
			err = fl.transition(ctx, tx, finding.FindingID, models.FindingConfirmed, "", now)
		case models.VerdictRejected:
			err = fl.transition(ctx, tx, finding.FindingID, models.FindingRejected, "", now)
		case models.VerdictEdited:
			newFinding = editedFinding(finding, in, now)
			if err = tx.Findings.Insert(ctx, newFinding); err != nil {
				return fmt.Errorf("failed to store edited finding: %w", err)
			}
			err = fl.transition(ctx, tx, finding.FindingID, models.FindingSuperseded, newFinding.FindingID, now)
			record.ResultingFindingID = newFinding.FindingID
		}
		if err != nil {
			return err
		}

		if err := tx.Feedback.Append(ctx, &record); err != nil {
			return fmt.Errorf("failed to append feedback: %w", err)
		}

		delta := 1.0
		if in.Verdict == models.VerdictRejected {
			delta = -1.0
		}
		seen := make(map[string]bool)
		for _, ref := range finding.ContextRefs {
			if seen[ref.SectionID] {
				continue
			}
			seen[ref.SectionID] = true
			if err := tx.Associations.Adjust(ctx, ref.SectionID, delta, now); err != nil {
				return fmt.Errorf("failed to adjust association: %w", err)
			}
		}

		entry, err := fl.memory.rememberTx(ctx, tx, models.MemoryEntry{
			Scope:      models.ScopeLongTerm,
			Kind:       models.KindFeedback,
			SessionID:  finding.SessionID,
			Content:    feedbackSummary(finding, newFinding, &record),
			FindingID:  finding.FindingID,
			Provenance: models.Provenance{SessionID: finding.SessionID, Query: finding.Query},
		})
		if err != nil {
			return err
		}

		updated, err := tx.Findings.Get(ctx, finding.FindingID)
		if err != nil {
			return err
		}
		result = &models.FeedbackResult{
			Record:      record,
			Finding:     *updated,
			NewFinding:  newFinding,
			MemoryEntry: *entry,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Feedback.WithLabelValues(string(in.Verdict)).Inc()
	fl.logger.Info("feedback recorded", "finding", in.FindingID, "verdict", in.Verdict, "author", in.Author)
	return result, nil
}

// Audit lists feedback records created at or before asOf in sequence order
func (fl *FeedbackLoop) Audit(ctx context.Context, asOf time.Time) ([]models.FeedbackRecord, error) {
	return fl.store.Feedback.ListAsOf(ctx, asOf)
}

// History returns the feedback recorded against one finding in sequence order
func (fl *FeedbackLoop) History(ctx context.Context, findingID string) ([]models.FeedbackRecord, error) {
	if _, err := fl.store.Findings.Get(ctx, findingID); err != nil {
		return nil, err
	}
	return fl.store.Feedback.ListByFinding(ctx, findingID)
}

func (fl *FeedbackLoop) transition(ctx context.Context, tx *sqlite.Stores, id string, to models.FindingState, supersededBy string, at time.Time) error {
	changed, err := tx.Findings.Transition(ctx, id, to, supersededBy, at)
	if err != nil {
		return fmt.Errorf("failed to update finding: %w", err)
	}
	if !changed {
		return fmt.Errorf("%w: finding %s", models.ErrInvalidTransition, id)
	}
	return nil
}

func validateFeedback(in *models.FeedbackInput) error {
	if in.FindingID == "" {
		return fmt.Errorf("%w: finding id is required", models.ErrInvalidInput)
	}
	if !in.Verdict.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidVerdict, in.Verdict)
	}
	in.Author = strings.TrimSpace(in.Author)
	if in.Author == "" {
		return fmt.Errorf("%w: author is required", models.ErrInvalidInput)
	}
	if in.Verdict != models.VerdictEdited {
		in.EditedDescription = ""
		in.EditedSeverity = ""
		return nil
	}
	in.EditedDescription = strings.TrimSpace(in.EditedDescription)
	if in.EditedDescription == "" && in.EditedSeverity == "" {
		return fmt.Errorf("%w: an edit needs a new description or severity", models.ErrInvalidInput)
	}
	if in.EditedSeverity != "" {
		sev, err := models.ParseSeverity(string(in.EditedSeverity))
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrInvalidInput, err)
		}
		in.EditedSeverity = sev
	}
	return nil
}

func editedFinding(orig *models.RiskFinding, in models.FeedbackInput, now time.Time) *models.RiskFinding {
	f := &models.RiskFinding{
		FindingID:    "find_" + uuid.New().String(),
		SessionID:    orig.SessionID,
		Query:        orig.Query,
		Description:  orig.Description,
		Severity:     orig.Severity,
		Confidence:   orig.Confidence,
		ContextRefs:  orig.ContextRefs,
		State:        models.FindingConfirmed,
		SupersedesID: orig.FindingID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.EditedDescription != "" {
		f.Description = in.EditedDescription
	}
	if in.EditedSeverity != "" {
		f.Severity = in.EditedSeverity
	}
	return f
}

func feedbackSummary(orig, edited *models.RiskFinding, r *models.FeedbackRecord) string {
	var sb strings.Builder
	switch r.Verdict {
	case models.VerdictAccepted:
		fmt.Fprintf(&sb, "Expert %s accepted the %s risk: %s", r.Author, orig.Severity, orig.Description)
	case models.VerdictRejected:
		fmt.Fprintf(&sb, "Expert %s rejected the %s risk: %s", r.Author, orig.Severity, orig.Description)
	case models.VerdictEdited:
		fmt.Fprintf(&sb, "Expert %s corrected the %s risk %q to the %s risk: %s",
			r.Author, orig.Severity, orig.Description, edited.Severity, edited.Description)
	}
	if r.Rationale != "" {
		fmt.Fprintf(&sb, ". Rationale: %s", r.Rationale)
	}
	if orig.Query != "" {
		fmt.Fprintf(&sb, ". Question: %s", orig.Query)
	}
	return sb.String()
}
