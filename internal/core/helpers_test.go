// ABOUTME: Shared fakes and fixtures for core tests
// ABOUTME: Provides an in-memory store, a fixed-vector embedder and a scripted reasoner
package core

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/harper/riskmem/internal/llm"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Storage {
	t.Helper()
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// vectorEmbedder returns a fixed vector for every text
type vectorEmbedder struct {
	vec []float64
}

func (v *vectorEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return v.vec, nil
}

func (v *vectorEmbedder) Model() string { return "fixed" }

// unitAt returns a 2-d unit vector whose cosine with [1, 0] is score
func unitAt(score float64) []float64 {
	return []float64{score, math.Sqrt(1 - score*score)}
}

type fakeReasoner struct {
	mu      sync.Mutex
	reply   string
	err     error
	block   bool
	prompts []string
}

func (f *fakeReasoner) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func (f *fakeReasoner) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

const goodReply = "Here is my assessment:\n```json\n" +
	`{"description": "Session tokens are not invalidated on logout", "severity": "High", "confidence": 0.8}` +
	"\n```\n"

const requirementsDoc = `Login service requirements.

SEC-1: Users authenticate with a password and a one-time code.
SEC-2: Session tokens expire after 15 minutes of inactivity and are invalidated on logout.
SEC-3: Passwords are stored with a salted memory-hard hash.
FR-4: The service exports audit logs to the central log store every hour.
`

// newTestService wires a service over an in-memory store with the hash embedder
func newTestService(t *testing.T, reasoner Reasoner, tweak func(*Options)) *Service {
	t.Helper()
	opts := DefaultOptions()
	opts.Retriever.MinScore = 0
	opts.Orchestrator.ReasoningTimeout = time.Second
	if tweak != nil {
		tweak(&opts)
	}
	return NewService(newTestStore(t), llm.NewHashEmbedder(128), reasoner, opts)
}

// seedChunk stores one section with one chunk and its embedding
func seedChunk(t *testing.T, store *sqlite.Storage, docID, sectionID, chunkID, text string, vec []float64, ingestedAt time.Time) {
	t.Helper()
	ctx := context.Background()
	if ok, _ := store.Documents.Exists(ctx, docID); !ok {
		if err := store.Documents.Save(ctx, &models.Document{ID: docID, Title: docID, Body: text, IngestedAt: ingestedAt}); err != nil {
			t.Fatalf("Documents.Save() error = %v", err)
		}
	}
	if _, err := store.Sections.Get(ctx, sectionID); err != nil {
		sec := models.Section{SectionID: sectionID, DocumentID: docID, End: len(text), Text: text, IngestedAt: ingestedAt}
		if err := store.Sections.Save(ctx, &sec); err != nil {
			t.Fatalf("Sections.Save() error = %v", err)
		}
	}
	chunk := models.Chunk{ChunkID: chunkID, SectionID: sectionID, DocumentID: docID, End: len(text), Text: text}
	if err := store.Chunks.Save(ctx, &chunk); err != nil {
		t.Fatalf("Chunks.Save() error = %v", err)
	}
	if err := store.Embeddings.Save(ctx, chunkID, "fixed", vec); err != nil {
		t.Fatalf("Embeddings.Save() error = %v", err)
	}
}
