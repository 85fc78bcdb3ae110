// ABOUTME: Tests for the expert feedback loop
// ABOUTME: Covers state transitions, edit supersession, association weights, memory and audit
package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
)

func insertFinding(t *testing.T, store *sqlite.Storage, mem *MemoryManager, refs ...models.ContextRef) *models.RiskFinding {
	t.Helper()
	ctx := context.Background()
	sess, err := mem.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	now := time.Now().UTC()
	f := &models.RiskFinding{
		FindingID:   "find_" + sess.SessionID,
		SessionID:   sess.SessionID,
		Query:       "what about tokens",
		Description: "Tokens never expire",
		Severity:    models.SeverityHigh,
		Confidence:  0.7,
		ContextRefs: refs,
		State:       models.FindingProposed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.Findings.Insert(ctx, f); err != nil {
		t.Fatalf("Findings.Insert() error = %v", err)
	}
	return f
}

func TestFeedback_ConfirmThenRejectThenInvalid(t *testing.T) {
	store := newTestStore(t)
	mem := NewMemoryManager(store, 10)
	fl := NewFeedbackLoop(store, mem)
	ctx := context.Background()
	f := insertFinding(t, store, mem, models.ContextRef{SectionID: "S1", ChunkID: "c1"})

	res, err := fl.Submit(ctx, models.FeedbackInput{FindingID: f.FindingID, Verdict: models.VerdictAccepted, Author: "ana"})
	if err != nil {
		t.Fatalf("Submit(accepted) error = %v", err)
	}
	if res.Finding.State != models.FindingConfirmed {
		t.Errorf("State = %v, want confirmed", res.Finding.State)
	}
	if res.MemoryEntry.Scope != models.ScopeLongTerm || res.MemoryEntry.Kind != models.KindFeedback {
		t.Errorf("memory entry = %+v", res.MemoryEntry)
	}

	res, err = fl.Submit(ctx, models.FeedbackInput{FindingID: f.FindingID, Verdict: models.VerdictRejected, Author: "bo", Rationale: "covered by SEC-2"})
	if err != nil {
		t.Fatalf("Submit(rejected) error = %v", err)
	}
	if res.Finding.State != models.FindingRejected {
		t.Errorf("State = %v, want rejected", res.Finding.State)
	}

	_, err = fl.Submit(ctx, models.FeedbackInput{FindingID: f.FindingID, Verdict: models.VerdictAccepted, Author: "ana"})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("Submit() on rejected error = %v, want ErrInvalidTransition", err)
	}

	records, err := fl.Audit(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
	if records[0].Seq >= records[1].Seq {
		t.Error("records not in sequence order")
	}

	history, err := fl.History(ctx, f.FindingID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Verdict != models.VerdictAccepted || history[1].Author != "bo" {
		t.Errorf("History() = %+v", history)
	}
	if _, err := fl.History(ctx, "find_missing"); !errors.Is(err, models.ErrFindingNotFound) {
		t.Errorf("History() missing finding error = %v, want ErrFindingNotFound", err)
	}

	weights, _ := store.Associations.Weights(ctx, []string{"S1"})
	if weights["S1"] != 0 {
		t.Errorf("S1 weight = %v, want 0 after +1 and -1", weights["S1"])
	}

	lt, _ := mem.Peek(ctx, models.ScopeLongTerm, models.RecallFilter{Kinds: []models.MemoryKind{models.KindFeedback}})
	if len(lt) != 2 {
		t.Errorf("feedback memory entries = %d, want 2", len(lt))
	}
}

func TestFeedback_EditSupersedes(t *testing.T) {
	store := newTestStore(t)
	mem := NewMemoryManager(store, 10)
	fl := NewFeedbackLoop(store, mem)
	ctx := context.Background()
	refs := []models.ContextRef{{SectionID: "S1", ChunkID: "c1"}, {SectionID: "S2", ChunkID: "c2"}}
	f := insertFinding(t, store, mem, refs...)

	res, err := fl.Submit(ctx, models.FeedbackInput{
		FindingID:         f.FindingID,
		Verdict:           models.VerdictEdited,
		Author:            "ana",
		EditedDescription: "Tokens survive logout",
		EditedSeverity:    "critical",
	})
	if err != nil {
		t.Fatalf("Submit(edited) error = %v", err)
	}
	if res.NewFinding == nil {
		t.Fatal("edit produced no new finding")
	}
	if res.Finding.State != models.FindingSuperseded || res.Finding.SupersededBy != res.NewFinding.FindingID {
		t.Errorf("original = %+v", res.Finding)
	}
	if res.NewFinding.State != models.FindingConfirmed || res.NewFinding.SupersedesID != f.FindingID {
		t.Errorf("new = %+v", res.NewFinding)
	}
	if res.NewFinding.Severity != models.SeverityCritical || res.NewFinding.Description != "Tokens survive logout" {
		t.Errorf("edit not applied: %+v", res.NewFinding)
	}
	if len(res.NewFinding.ContextRefs) != 2 {
		t.Errorf("new finding refs = %v, want the original's", res.NewFinding.ContextRefs)
	}
	if res.Record.ResultingFindingID != res.NewFinding.FindingID {
		t.Error("record does not link the resulting finding")
	}

	weights, _ := store.Associations.Weights(ctx, []string{"S1", "S2"})
	if weights["S1"] != 1 || weights["S2"] != 1 {
		t.Errorf("weights = %v, want +1 each", weights)
	}

	_, err = fl.Submit(ctx, models.FeedbackInput{FindingID: f.FindingID, Verdict: models.VerdictAccepted, Author: "ana"})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("feedback on superseded finding error = %v, want ErrInvalidTransition", err)
	}

	stored, _ := store.Findings.Get(ctx, res.NewFinding.FindingID)
	if stored.State != models.FindingConfirmed {
		t.Errorf("stored new finding state = %v", stored.State)
	}
}

func TestFeedback_InvalidInput(t *testing.T) {
	store := newTestStore(t)
	mem := NewMemoryManager(store, 10)
	fl := NewFeedbackLoop(store, mem)
	ctx := context.Background()
	f := insertFinding(t, store, mem)

	tests := []struct {
		name string
		in   models.FeedbackInput
		want error
	}{
		{"bad verdict", models.FeedbackInput{FindingID: f.FindingID, Verdict: "maybe", Author: "ana"}, models.ErrInvalidVerdict},
		{"no author", models.FeedbackInput{FindingID: f.FindingID, Verdict: models.VerdictAccepted}, models.ErrInvalidInput},
		{"empty edit", models.FeedbackInput{FindingID: f.FindingID, Verdict: models.VerdictEdited, Author: "ana"}, models.ErrInvalidInput},
		{"bad severity", models.FeedbackInput{FindingID: f.FindingID, Verdict: models.VerdictEdited, Author: "ana", EditedSeverity: "huge"}, models.ErrInvalidInput},
		{"unknown finding", models.FeedbackInput{FindingID: "find_missing", Verdict: models.VerdictAccepted, Author: "ana"}, models.ErrFindingNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := fl.Submit(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Submit() error = %v, want %v", err, tt.want)
			}
		})
	}

	got, _ := store.Findings.Get(ctx, f.FindingID)
	if got.State != models.FindingProposed {
		t.Errorf("State = %v after rejected submissions, want proposed", got.State)
	}
	records, _ := fl.Audit(ctx, time.Now().Add(time.Minute))
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestFeedback_AuditAsOf(t *testing.T) {
	store := newTestStore(t)
	mem := NewMemoryManager(store, 10)
	fl := NewFeedbackLoop(store, mem)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	fl.now = func() time.Time { return clock }

	f1 := insertFinding(t, store, mem)
	f2 := insertFinding(t, store, mem)

	if _, err := fl.Submit(ctx, models.FeedbackInput{FindingID: f1.FindingID, Verdict: models.VerdictAccepted, Author: "ana"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	clock = base.Add(time.Hour)
	if _, err := fl.Submit(ctx, models.FeedbackInput{FindingID: f2.FindingID, Verdict: models.VerdictRejected, Author: "ana"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	early, _ := fl.Audit(ctx, base.Add(30*time.Minute))
	if len(early) != 1 || early[0].FindingID != f1.FindingID {
		t.Errorf("audit at +30m = %+v, want only f1", early)
	}
	late, _ := fl.Audit(ctx, base.Add(2*time.Hour))
	if len(late) != 2 {
		t.Errorf("audit at +2h = %d records, want 2", len(late))
	}
}
