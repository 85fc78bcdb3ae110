// ABOUTME: Tests for MCP tool handlers
// ABOUTME: Calls handlers directly with tool requests over an in-memory core service
package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/harper/riskmem/internal/core"
	"github.com/harper/riskmem/internal/llm"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
	"github.com/mark3labs/mcp-go/mcp"
)

type stubReasoner struct{}

func (stubReasoner) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return `{"description":"Audit logs can be tampered with","severity":"medium","confidence":0.5}`, nil
}

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	opts := core.DefaultOptions()
	opts.Orchestrator.ReasoningTimeout = time.Second
	return &Handlers{svc: core.NewService(store, llm.NewHashEmbedder(64), stubReasoner{}, opts)}
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error = %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestToolFlow(t *testing.T) {
	h := newTestHandlers(t)

	out, isErr := call(t, h.SubmitDocument, map[string]any{"text": "FR-1: Audit logs are append-only.\n", "document_id": "audit"})
	if isErr || !strings.Contains(out, `"document_id":"audit"`) {
		t.Fatalf("submit_document = %s", out)
	}

	out, isErr = call(t, h.StartSession, nil)
	if isErr {
		t.Fatalf("start_session = %s", out)
	}
	var sess models.Session
	if err := json.Unmarshal([]byte(out), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	out, isErr = call(t, h.PinNote, map[string]any{"session_id": sess.SessionID, "text": "logs ship hourly"})
	if isErr {
		t.Fatalf("pin_note = %s", out)
	}

	out, isErr = call(t, h.Ask, map[string]any{"session_id": sess.SessionID, "query": "Can audit logs be altered?"})
	if isErr {
		t.Fatalf("ask = %s", out)
	}
	var finding models.RiskFinding
	if err := json.Unmarshal([]byte(out), &finding); err != nil {
		t.Fatalf("decode finding: %v", err)
	}

	out, isErr = call(t, h.SubmitFeedback, map[string]any{
		"finding_id":      finding.FindingID,
		"verdict":         "edited",
		"author":          "ana",
		"edited_severity": "high",
	})
	if isErr || !strings.Contains(out, `"new_finding"`) {
		t.Fatalf("submit_feedback = %s", out)
	}

	out, isErr = call(t, h.ListFindings, map[string]any{"state": "confirmed"})
	if isErr || !strings.Contains(out, `"count":1`) {
		t.Errorf("list_findings = %s", out)
	}

	out, isErr = call(t, h.RecallMemory, map[string]any{"scope": "long_term"})
	if isErr || !strings.Contains(out, `"kind":"feedback"`) {
		t.Errorf("recall_memory = %s", out)
	}

	out, isErr = call(t, h.CloseSession, map[string]any{"session_id": sess.SessionID})
	if isErr || !strings.Contains(out, `"state":"closed"`) {
		t.Errorf("close_session = %s", out)
	}
}

func TestRememberMemoryTool(t *testing.T) {
	h := newTestHandlers(t)

	out, isErr := call(t, h.RememberMemory, map[string]any{"content": "Payments vendor is PCI certified", "ttl_seconds": 120.0})
	if isErr {
		t.Fatalf("remember_memory = %s", out)
	}
	var entry models.MemoryEntry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Scope != models.ScopeLongTerm || entry.ExpiresAt == nil {
		t.Errorf("entry = %+v, want long-term with an expiry", entry)
	}
	if until := time.Until(*entry.ExpiresAt); until <= time.Minute || until > 2*time.Minute {
		t.Errorf("expires in %v, want about 2m", until)
	}

	out, isErr = call(t, h.RememberMemory, map[string]any{"content": "kept until evicted"})
	if isErr || strings.Contains(out, "expires_at") {
		t.Errorf("remember_memory without ttl = %s", out)
	}

	out, isErr = call(t, h.RecallMemory, map[string]any{"scope": "long_term"})
	if isErr || !strings.Contains(out, `"count":2`) {
		t.Errorf("recall_memory = %s", out)
	}
}

func TestToolErrors(t *testing.T) {
	h := newTestHandlers(t)

	tests := []struct {
		name string
		fn   func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args map[string]any
		want string
	}{
		{"missing text", h.SubmitDocument, map[string]any{}, "text argument is required"},
		{"malformed", h.SubmitDocument, map[string]any{"text": "   "}, "malformed"},
		{"unknown session", h.Ask, map[string]any{"session_id": "sess_x", "query": "q"}, "session not found"},
		{"bad verdict", h.SubmitFeedback, map[string]any{"finding_id": "f", "verdict": "meh", "author": "a"}, "verdict"},
		{"short term without session", h.RecallMemory, map[string]any{"scope": "short_term"}, "session"},
		{"promote unknown", h.PromoteMemory, map[string]any{"entry_id": "mem_x"}, "not found"},
		{"remember without content", h.RememberMemory, map[string]any{}, "content argument is required"},
		{"remember negative ttl", h.RememberMemory, map[string]any{"content": "x", "ttl_seconds": -1.0}, "ttl_seconds"},
		{"remember short term without session", h.RememberMemory, map[string]any{"content": "x", "scope": "short_term"}, "session"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, isErr := call(t, tt.fn, tt.args)
			if !isErr {
				t.Fatalf("expected tool error, got %s", out)
			}
			if !strings.Contains(strings.ToLower(out), tt.want) {
				t.Errorf("error %q does not mention %q", out, tt.want)
			}
		})
	}
}
