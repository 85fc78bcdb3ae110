// ABOUTME: Tests for risk assessment orchestration and reply parsing
// ABOUTME: Covers persistence on success, nothing persisted on failure, and feedback reaching the prompt
package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harper/riskmem/internal/models"
)

func TestAssess_PersistsFindingAndTurn(t *testing.T) {
	reasoner := &fakeReasoner{reply: goodReply}
	svc := newTestService(t, reasoner, nil)
	ctx := context.Background()

	if _, err := svc.SubmitDocument(ctx, requirementsDoc, models.DocumentMeta{ID: "login"}); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	sess, _ := svc.StartSession(ctx)

	finding, err := svc.Ask(ctx, sess.SessionID, "Are session tokens invalidated on logout?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if finding.State != models.FindingProposed {
		t.Errorf("State = %v, want proposed", finding.State)
	}
	if finding.Severity != models.SeverityHigh || finding.Confidence != 0.8 {
		t.Errorf("finding = %+v", finding)
	}
	if len(finding.ContextRefs) == 0 {
		t.Error("finding has no context refs")
	}
	for _, ref := range finding.ContextRefs {
		if !strings.Contains(reasoner.lastPrompt(), ref.SectionID) {
			t.Errorf("context ref %s was not in the prompt", ref.SectionID)
		}
	}

	stored, err := svc.GetFinding(ctx, finding.FindingID)
	if err != nil {
		t.Fatalf("GetFinding() error = %v", err)
	}
	if stored.Description != finding.Description {
		t.Error("stored finding differs")
	}

	turns, _ := svc.Recall(ctx, models.ScopeShortTerm, models.RecallFilter{SessionID: sess.SessionID, Kinds: []models.MemoryKind{models.KindTurn}})
	if len(turns) != 1 || turns[0].FindingID != finding.FindingID {
		t.Errorf("turn entries = %+v", turns)
	}
}

func TestAssess_FailuresPersistNothing(t *testing.T) {
	tests := []struct {
		name     string
		reasoner *fakeReasoner
	}{
		{"unparseable", &fakeReasoner{reply: "I think it is probably fine."}},
		{"out of range", &fakeReasoner{reply: `{"description": "x", "severity": "low", "confidence": 7}`}},
		{"unreachable", &fakeReasoner{err: errors.New("connection refused")}},
		{"timeout", &fakeReasoner{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.reasoner, func(o *Options) {
				o.Orchestrator.ReasoningTimeout = 20 * time.Millisecond
			})
			ctx := context.Background()
			if _, err := svc.SubmitDocument(ctx, requirementsDoc, models.DocumentMeta{ID: "login"}); err != nil {
				t.Fatalf("SubmitDocument() error = %v", err)
			}
			sess, _ := svc.StartSession(ctx)

			_, err := svc.Ask(ctx, sess.SessionID, "tokens on logout?")
			if !errors.Is(err, models.ErrAssessmentUnavailable) {
				t.Fatalf("Ask() error = %v, want ErrAssessmentUnavailable", err)
			}

			findings, _ := svc.ListFindings(ctx, models.FindingFilter{})
			if len(findings) != 0 {
				t.Errorf("findings = %d, want 0", len(findings))
			}
			turns, _ := svc.Recall(ctx, models.ScopeShortTerm, models.RecallFilter{SessionID: sess.SessionID})
			if len(turns) != 0 {
				t.Errorf("memory entries = %d, want 0", len(turns))
			}
		})
	}
}

func TestAssess_SessionErrors(t *testing.T) {
	svc := newTestService(t, &fakeReasoner{reply: goodReply}, nil)
	ctx := context.Background()

	if _, err := svc.Ask(ctx, "sess_missing", "q"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("unknown session error = %v, want ErrSessionNotFound", err)
	}

	sess, _ := svc.StartSession(ctx)
	if _, err := svc.CloseSession(ctx, sess.SessionID); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if _, err := svc.Ask(ctx, sess.SessionID, "q"); !errors.Is(err, models.ErrSessionClosed) {
		t.Errorf("closed session error = %v, want ErrSessionClosed", err)
	}
}

func TestAssess_EmptyStoreStillAnswers(t *testing.T) {
	svc := newTestService(t, &fakeReasoner{reply: goodReply}, nil)
	ctx := context.Background()
	sess, _ := svc.StartSession(ctx)

	finding, err := svc.Ask(ctx, sess.SessionID, "anything?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(finding.ContextRefs) != 0 {
		t.Errorf("refs = %v, want none", finding.ContextRefs)
	}
}

func TestAssess_FeedbackReachesLaterPrompts(t *testing.T) {
	reasoner := &fakeReasoner{reply: goodReply}
	svc := newTestService(t, reasoner, nil)
	ctx := context.Background()
	if _, err := svc.SubmitDocument(ctx, requirementsDoc, models.DocumentMeta{ID: "login"}); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}

	s1, _ := svc.StartSession(ctx)
	finding, err := svc.Ask(ctx, s1.SessionID, "Are session tokens invalidated on logout?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if _, err := svc.SubmitFeedback(ctx, models.FeedbackInput{
		FindingID: finding.FindingID,
		Verdict:   models.VerdictRejected,
		Author:    "ana",
		Rationale: "SEC-2 invalidates session tokens on logout",
	}); err != nil {
		t.Fatalf("SubmitFeedback() error = %v", err)
	}
	if _, err := svc.CloseSession(ctx, s1.SessionID); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	s2, _ := svc.StartSession(ctx)
	if _, err := svc.Pin(ctx, s2.SessionID, "Scope is the login service only"); err != nil {
		t.Fatalf("Pin() error = %v", err)
	}
	if _, err := svc.Ask(ctx, s2.SessionID, "Are session tokens invalidated on logout?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	prompt := reasoner.lastPrompt()
	if !strings.Contains(prompt, "EXPERT FEEDBACK") || !strings.Contains(prompt, "SEC-2 invalidates") {
		t.Error("expert feedback missing from later prompt")
	}
	if !strings.Contains(prompt, "Scope is the login service only") {
		t.Error("pinned note missing from prompt")
	}
	if strings.Index(prompt, "ANALYST PINNED NOTES") > strings.Index(prompt, "EXPERT FEEDBACK") {
		t.Error("pinned notes should precede feedback")
	}
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
		want    Assessment
	}{
		{"plain", `{"description":"d","severity":"low","confidence":0.1}`, false, Assessment{"d", models.SeverityLow, 0.1}},
		{"fenced with prose", goodReply, false, Assessment{"Session tokens are not invalidated on logout", models.SeverityHigh, 0.8}},
		{"moderate", `{"description":"d","severity":"Moderate","confidence":1}`, false, Assessment{"d", models.SeverityMedium, 1}},
		{"no json", "nothing to see", true, Assessment{}},
		{"broken json", `{"description": "d", `, true, Assessment{}},
		{"missing description", `{"severity":"low","confidence":0.5}`, true, Assessment{}},
		{"unknown severity", `{"description":"d","severity":"spicy","confidence":0.5}`, true, Assessment{}},
		{"missing confidence", `{"description":"d","severity":"low"}`, true, Assessment{}},
		{"negative confidence", `{"description":"d","severity":"low","confidence":-0.1}`, true, Assessment{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssessment(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAssessment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && *got != tt.want {
				t.Errorf("ParseAssessment() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestContextHydrator_DropsLowestPriorityFirst(t *testing.T) {
	in := PromptInput{
		Query:    "q",
		Pinned:   []models.MemoryEntry{{Content: "pin"}},
		Feedback: []models.MemoryEntry{{Content: "feedback"}},
		Memory:   []models.MemoryEntry{{Content: "memory"}},
		Sections: []models.RetrievedSection{
			{Section: models.Section{SectionID: "S1", Text: strings.Repeat("x", 50)}},
			{Section: models.Section{SectionID: "S2", Text: strings.Repeat("y", 50)}},
		},
	}

	full := NewContextHydrator(0).Hydrate(in)
	if len(full.Sections) != 2 || len(full.Memory) != 3 {
		t.Fatalf("unbounded prompt kept %d sections, %d memories", len(full.Sections), len(full.Memory))
	}

	// room for everything but the last section
	budget := len(full.Text) - 20
	trimmed := NewContextHydrator(budget).Hydrate(in)
	if len(trimmed.Text) > budget {
		t.Errorf("prompt length %d exceeds budget %d", len(trimmed.Text), budget)
	}
	if len(trimmed.Sections) != 1 || trimmed.Sections[0].Section.SectionID != "S1" {
		t.Errorf("kept sections = %+v, want S1 only", trimmed.Refs())
	}
	if len(trimmed.Memory) != 3 {
		t.Errorf("kept memories = %d, want 3", len(trimmed.Memory))
	}

	tiny := NewContextHydrator(1).Hydrate(in)
	if !strings.Contains(tiny.Text, "QUESTION:\nq") || !strings.Contains(tiny.Text, "SYSTEM:") {
		t.Error("instructions and question must always be present")
	}
	if len(tiny.Sections) != 0 || len(tiny.Memory) != 0 {
		t.Error("tiny budget should drop all optional blocks")
	}
}

// overlapReasoner records how many Generate calls run at once
type overlapReasoner struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
}

func (o *overlapReasoner) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	o.mu.Lock()
	o.inFlight++
	o.calls++
	if o.inFlight > o.maxInFlight {
		o.maxInFlight = o.inFlight
	}
	o.mu.Unlock()

	time.Sleep(25 * time.Millisecond)

	o.mu.Lock()
	o.inFlight--
	o.mu.Unlock()
	return goodReply, nil
}

func TestAssess_SameSessionSerialized(t *testing.T) {
	reasoner := &overlapReasoner{}
	svc := newTestService(t, reasoner, nil)
	ctx := context.Background()

	if _, err := svc.SubmitDocument(ctx, requirementsDoc, models.DocumentMeta{ID: "login"}); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	sess, _ := svc.StartSession(ctx)

	const asks = 4
	var wg sync.WaitGroup
	errs := make(chan error, asks)
	for i := 0; i < asks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ask(ctx, sess.SessionID, "Are session tokens invalidated on logout?")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Ask() error = %v", err)
		}
	}

	reasoner.mu.Lock()
	defer reasoner.mu.Unlock()
	if reasoner.calls != asks {
		t.Errorf("reasoner calls = %d, want %d", reasoner.calls, asks)
	}
	if reasoner.maxInFlight != 1 {
		t.Errorf("max concurrent reasoner calls in one session = %d, want 1", reasoner.maxInFlight)
	}

	findings, err := svc.ListFindings(ctx, models.FindingFilter{SessionID: sess.SessionID})
	if err != nil {
		t.Fatalf("ListFindings() error = %v", err)
	}
	if len(findings) != asks {
		t.Errorf("findings = %d, want %d", len(findings), asks)
	}
}

func TestAssess_CloseWaitsForInFlightAssessment(t *testing.T) {
	reasoner := &overlapReasoner{}
	svc := newTestService(t, reasoner, nil)
	ctx := context.Background()

	if _, err := svc.SubmitDocument(ctx, requirementsDoc, models.DocumentMeta{ID: "login"}); err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	sess, _ := svc.StartSession(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Ask(ctx, sess.SessionID, "tokens on logout?")
		done <- err
	}()
	// let the assessment take the session lock
	for {
		reasoner.mu.Lock()
		started := reasoner.calls > 0
		reasoner.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := svc.CloseSession(ctx, sess.SessionID); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("in-flight Ask() error = %v, want it to finish before close", err)
	}
	if _, err := svc.Ask(ctx, sess.SessionID, "again?"); !errors.Is(err, models.ErrSessionClosed) {
		t.Errorf("Ask() after close error = %v, want ErrSessionClosed", err)
	}
}
