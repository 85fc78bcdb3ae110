// ABOUTME: Tests for the per-entity stores and transactional Storage
// ABOUTME: Covers cascades, similarity search, memory transitions, findings and feedback immutability
package sqlite

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/harper/riskmem/internal/models"
	"gopkg.in/yaml.v3"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedDocument stores a document with one section per text and one chunk per section
func seedDocument(t *testing.T, store *Storage, docID string, texts ...string) []models.Section {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	body := strings.Join(texts, "")
	if err := store.Documents.Save(ctx, &models.Document{ID: docID, Title: docID, Body: body, IngestedAt: now}); err != nil {
		t.Fatalf("Documents.Save() error = %v", err)
	}

	var sections []models.Section
	offset := 0
	for i, text := range texts {
		sec := models.Section{
			SectionID:  docID + "_sec" + string(rune('0'+i)),
			DocumentID: docID,
			Ordinal:    i,
			Start:      offset,
			End:        offset + len(text),
			Text:       text,
			IngestedAt: now,
		}
		offset += len(text)
		if err := store.Sections.Save(ctx, &sec); err != nil {
			t.Fatalf("Sections.Save() error = %v", err)
		}
		chunk := models.Chunk{
			ChunkID:    sec.SectionID + "_c0",
			SectionID:  sec.SectionID,
			DocumentID: docID,
			End:        len(text),
			Text:       text,
		}
		if err := store.Chunks.Save(ctx, &chunk); err != nil {
			t.Fatalf("Chunks.Save() error = %v", err)
		}
		sections = append(sections, sec)
	}
	return sections
}

func TestDocumentStore_RoundTripAndCascade(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	sections := seedDocument(t, store, "doc1", "FR-1 Users log in.\n", "FR-2 Admins reset passwords.\n")
	if err := store.Embeddings.Save(ctx, sections[0].SectionID+"_c0", "test-model", []float64{1, 0}); err != nil {
		t.Fatalf("Embeddings.Save() error = %v", err)
	}

	doc, err := store.Documents.Get(ctx, "doc1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Body != "FR-1 Users log in.\nFR-2 Admins reset passwords.\n" {
		t.Errorf("Body = %q", doc.Body)
	}

	got, err := store.Sections.ListByDocument(ctx, "doc1")
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(got) != 2 || got[1].Start != sections[1].Start {
		t.Fatalf("ListByDocument() = %+v", got)
	}

	mismatched := models.Section{SectionID: "doc1_bad", DocumentID: "doc1", Start: 0, End: 50, Text: "short"}
	if err := store.Sections.Save(ctx, &mismatched); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Save() with offsets not matching text error = %v, want ErrInvalidInput", err)
	}

	if err := store.Documents.Delete(ctx, "doc1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := store.Sections.Get(ctx, sections[0].SectionID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("section should cascade, got err = %v", err)
	}
	if n, _ := store.Embeddings.Count(ctx, "test-model"); n != 0 {
		t.Errorf("embeddings should cascade, count = %d", n)
	}
	if err := store.Documents.Delete(ctx, "doc1"); !errors.Is(err, models.ErrDocumentNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDocumentNotFound", err)
	}
}

func TestEmbeddingStore_SearchSimilar(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.Embeddings.SearchSimilar(ctx, []float64{1, 0}, "m", 3); !errors.Is(err, models.ErrEmptyIndex) {
		t.Fatalf("SearchSimilar() on empty store error = %v, want ErrEmptyIndex", err)
	}

	sections := seedDocument(t, store, "doc1", "alpha ", "beta ", "gamma ")
	vectors := [][]float64{{1, 0}, {0.8, 0.6}, {0, 1}}
	for i, sec := range sections {
		if err := store.Embeddings.Save(ctx, sec.SectionID+"_c0", "m", vectors[i]); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	results, err := store.Embeddings.SearchSimilar(ctx, []float64{1, 0}, "m", 2)
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Chunk.SectionID != sections[0].SectionID {
		t.Errorf("top result = %s, want %s", results[0].Chunk.SectionID, sections[0].SectionID)
	}
	if math.Abs(results[1].Score-0.8) > 1e-9 {
		t.Errorf("second score = %v, want 0.8", results[1].Score)
	}

	if _, err := store.Embeddings.SearchSimilar(ctx, []float64{1, 0}, "other-model", 2); !errors.Is(err, models.ErrEmptyIndex) {
		t.Errorf("other model error = %v, want ErrEmptyIndex", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorBlobRoundTrip(t *testing.T) {
	in := []float64{0.25, -1.5, math.Pi}
	out := blobToVector(vectorToBlob(in))
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestMemoryStore_Transitions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	entry := &models.MemoryEntry{
		EntryID:   "mem_1",
		Scope:     models.ScopeShortTerm,
		Kind:      models.KindTurn,
		SessionID: "sess_1",
		Content:   "analyst asked about auth",
		CreatedAt: now,
	}
	if err := store.Memories.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	live, err := store.Memories.ListLive(ctx, models.ScopeShortTerm, "sess_1", now)
	if err != nil || len(live) != 1 {
		t.Fatalf("ListLive() = %v, %v", live, err)
	}

	changed, err := store.Memories.Promote(ctx, "mem_1", now, 7)
	if err != nil || !changed {
		t.Fatalf("Promote() = %v, %v", changed, err)
	}
	changed, _ = store.Memories.Promote(ctx, "mem_1", now, 8)
	if changed {
		t.Error("second Promote() should not change a long-term entry")
	}

	expired, err := store.Memories.ExpireSession(ctx, "sess_1", now)
	if err != nil {
		t.Fatalf("ExpireSession() error = %v", err)
	}
	if expired != 0 {
		t.Errorf("ExpireSession() expired %d promoted entries, want 0", expired)
	}

	got, err := store.Memories.Get(ctx, "mem_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Scope != models.ScopeLongTerm || got.PromotedAt == nil || got.LastUsedSeq != 7 {
		t.Errorf("promoted entry = %+v", got)
	}

	if changed, _ := store.Memories.Expire(ctx, "mem_1", models.ExpireExplicit, now); !changed {
		t.Error("Expire() should change a live entry")
	}
	if changed, _ := store.Memories.Expire(ctx, "mem_1", models.ExpireExplicit, now); changed {
		t.Error("Expire() should be idempotent")
	}
	live, _ = store.Memories.ListLive(ctx, models.ScopeLongTerm, "", now)
	if len(live) != 0 {
		t.Errorf("expired entry still live: %+v", live)
	}
	all, _ := store.Memories.ListAll(ctx, models.ScopeLongTerm)
	if len(all) != 1 || all[0].ExpireReason != models.ExpireExplicit {
		t.Errorf("expired entry should remain stored, got %+v", all)
	}

	seq, err := store.Memories.NextSeq(ctx)
	if err != nil || seq != 8 {
		t.Errorf("NextSeq() = %d, %v; want 8", seq, err)
	}
}

func TestMemoryStore_ExpireDue(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	for _, e := range []*models.MemoryEntry{
		{EntryID: "mem_due", Scope: models.ScopeLongTerm, Kind: models.KindNote, Content: "due", CreatedAt: now, ExpiresAt: &past},
		{EntryID: "mem_later", Scope: models.ScopeLongTerm, Kind: models.KindNote, Content: "later", CreatedAt: now, ExpiresAt: &future},
		{EntryID: "mem_forever", Scope: models.ScopeLongTerm, Kind: models.KindNote, Content: "forever", CreatedAt: now},
	} {
		if err := store.Memories.Insert(ctx, e); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	n, err := store.Memories.ExpireDue(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("ExpireDue() = %d, %v; want 1", n, err)
	}
	got, _ := store.Memories.Get(ctx, "mem_due")
	if got.ExpireReason != models.ExpireTTL || got.ExpiredAt == nil || !got.ExpiredAt.Equal(past.UTC().Truncate(0)) {
		t.Errorf("due entry = %+v, want ttl expiry at its deadline", got)
	}
	if n, _ := store.Memories.ExpireDue(ctx, now); n != 0 {
		t.Errorf("second ExpireDue() = %d, want 0", n)
	}
	for _, id := range []string{"mem_later", "mem_forever"} {
		if e, _ := store.Memories.Get(ctx, id); e.ExpiredAt != nil {
			t.Errorf("%s expired early", id)
		}
	}
}

func TestFindingStore_GuardedTransition(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	f := &models.RiskFinding{
		FindingID:   "find_1",
		SessionID:   "sess_1",
		Query:       "auth risks",
		Description: "Password reset tokens never expire",
		Severity:    models.SeverityHigh,
		Confidence:  0.7,
		ContextRefs: []models.ContextRef{{SectionID: "s1", ChunkID: "c1"}},
		State:       models.FindingProposed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.Findings.Insert(ctx, f); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	ok, err := store.Findings.Transition(ctx, "find_1", models.FindingRejected, "", now)
	if err != nil || !ok {
		t.Fatalf("Transition() = %v, %v", ok, err)
	}
	ok, _ = store.Findings.Transition(ctx, "find_1", models.FindingConfirmed, "", now)
	if ok {
		t.Error("Transition() out of rejected should be refused")
	}

	got, err := store.Findings.Get(ctx, "find_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != models.FindingRejected || len(got.ContextRefs) != 1 || got.ContextRefs[0].SectionID != "s1" {
		t.Errorf("Get() = %+v", got)
	}

	bad := *f
	bad.FindingID = "find_bad"
	bad.Confidence = 1.5
	if err := store.Findings.Insert(ctx, &bad); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Insert() out-of-range confidence error = %v, want ErrInvalidInput", err)
	}

	if _, err := store.DB().ExecContext(ctx, `DELETE FROM findings WHERE id = ?`, "find_1"); err == nil {
		t.Error("deleting a finding should be rejected by trigger")
	}

	list, err := store.Findings.List(ctx, models.FindingFilter{State: models.FindingRejected})
	if err != nil || len(list) != 1 {
		t.Errorf("List() = %v, %v", list, err)
	}
}

func TestFeedbackStore_AppendOnly(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r1 := &models.FeedbackRecord{FeedbackID: "fb_1", FindingID: "find_1", Verdict: models.VerdictAccepted, Author: "ana", CreatedAt: t0}
	r2 := &models.FeedbackRecord{FeedbackID: "fb_2", FindingID: "find_2", Verdict: models.VerdictRejected, Author: "ana", CreatedAt: t0.Add(time.Hour)}
	for _, r := range []*models.FeedbackRecord{r1, r2} {
		if err := store.Feedback.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if r2.Seq <= r1.Seq {
		t.Errorf("sequence not increasing: %d then %d", r1.Seq, r2.Seq)
	}

	asOf, err := store.Feedback.ListAsOf(ctx, t0.Add(time.Minute))
	if err != nil || len(asOf) != 1 || asOf[0].FeedbackID != "fb_1" {
		t.Errorf("ListAsOf() = %+v, %v", asOf, err)
	}

	byFinding, err := store.Feedback.ListByFinding(ctx, "find_2")
	if err != nil || len(byFinding) != 1 || byFinding[0].FeedbackID != "fb_2" {
		t.Errorf("ListByFinding() = %+v, %v", byFinding, err)
	}

	if _, err := store.DB().ExecContext(ctx, `UPDATE feedback SET verdict = 'rejected' WHERE id = 'fb_1'`); err == nil {
		t.Error("updating feedback should be rejected by trigger")
	}
	if _, err := store.DB().ExecContext(ctx, `DELETE FROM feedback WHERE id = 'fb_1'`); err == nil {
		t.Error("deleting feedback should be rejected by trigger")
	}
}

func TestAssociationStore_Accumulates(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	for _, d := range []float64{1, 1, -1} {
		if err := store.Associations.Adjust(ctx, "s1", d, now); err != nil {
			t.Fatalf("Adjust() error = %v", err)
		}
	}
	_ = store.Associations.Adjust(ctx, "s2", -1, now)

	weights, err := store.Associations.Weights(ctx, []string{"s1", "s2", "s3"})
	if err != nil {
		t.Fatalf("Weights() error = %v", err)
	}
	if weights["s1"] != 1 || weights["s2"] != -1 {
		t.Errorf("Weights() = %v", weights)
	}
	if _, ok := weights["s3"]; ok {
		t.Error("unknown section should be absent")
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(tx *Stores) error {
		if err := tx.Sessions.Create(ctx, &models.Session{SessionID: "sess_tx", State: models.SessionActive, CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}
	if _, err := store.Sessions.Get(ctx, "sess_tx"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("session should have been rolled back, err = %v", err)
	}

	err = store.InTx(ctx, func(tx *Stores) error {
		return tx.Sessions.Create(ctx, &models.Session{SessionID: "sess_tx", State: models.SessionActive, CreatedAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("InTx() commit error = %v", err)
	}
	if _, err := store.Sessions.Get(ctx, "sess_tx"); err != nil {
		t.Errorf("committed session missing: %v", err)
	}
}

func TestExport_YAML(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	f := &models.RiskFinding{FindingID: "find_x", SessionID: "s", Query: "q", Description: "d",
		Severity: models.SeverityLow, Confidence: 0.5, State: models.FindingConfirmed, CreatedAt: now, UpdatedAt: now}
	_ = store.Findings.Insert(ctx, f)
	_ = store.Feedback.Append(ctx, &models.FeedbackRecord{FeedbackID: "fb_x", FindingID: "find_x",
		Verdict: models.VerdictAccepted, Author: "ana", CreatedAt: now})
	_ = store.Memories.Insert(ctx, &models.MemoryEntry{EntryID: "mem_x", Scope: models.ScopeLongTerm,
		Kind: models.KindFeedback, Content: "accepted", CreatedAt: now})

	data, err := store.Export(ctx, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(data.Feedback) != 1 || len(data.Findings) != 1 || len(data.Memory) != 1 {
		t.Fatalf("Export() = %+v", data)
	}

	var buf bytes.Buffer
	if err := data.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML() error = %v", err)
	}
	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("exported YAML invalid: %v", err)
	}
	if decoded["tool"] != "riskmem" {
		t.Errorf("tool = %v, want riskmem", decoded["tool"])
	}
}
