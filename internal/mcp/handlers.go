// ABOUTME: MCP tool handler implementations for the risk memory server
// ABOUTME: Each handler validates arguments, calls the core service and returns JSON text
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harper/riskmem/internal/core"
	"github.com/harper/riskmem/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	svc *core.Service
}

// SubmitDocument handles the submit_document tool
func (h *Handlers) SubmitDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}

	res, err := h.svc.SubmitDocument(ctx, text, models.DocumentMeta{
		ID:     request.GetString("document_id", ""),
		Title:  request.GetString("title", ""),
		Source: "mcp",
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"document_id": res.Document.ID,
		"sections":    len(res.Sections),
		"chunks":      len(res.Chunks),
	})
}

// StartSession handles the start_session tool
func (h *Handlers) StartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := h.svc.StartSession(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start session: %v", err)), nil
	}
	return jsonResult(sess)
}

// Ask handles the ask tool
func (h *Handlers) Ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	finding, err := h.svc.Ask(ctx, sessionID, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("assessment failed: %v", err)), nil
	}
	return jsonResult(finding)
}

// SubmitFeedback handles the submit_feedback tool
func (h *Handlers) SubmitFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	findingID, err := request.RequireString("finding_id")
	if err != nil {
		return mcp.NewToolResultError("finding_id argument is required and must be a string"), nil
	}
	verdict, err := request.RequireString("verdict")
	if err != nil {
		return mcp.NewToolResultError("verdict argument is required and must be a string"), nil
	}
	author, err := request.RequireString("author")
	if err != nil {
		return mcp.NewToolResultError("author argument is required and must be a string"), nil
	}

	res, err := h.svc.SubmitFeedback(ctx, models.FeedbackInput{
		FindingID:         findingID,
		Verdict:           models.Verdict(verdict),
		Author:            author,
		Rationale:         request.GetString("rationale", ""),
		EditedDescription: request.GetString("edited_description", ""),
		EditedSeverity:    models.Severity(request.GetString("edited_severity", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("feedback rejected: %v", err)), nil
	}
	return jsonResult(res)
}

// CloseSession handles the close_session tool
func (h *Handlers) CloseSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}

	expired, err := h.svc.CloseSession(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to close session: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"session_id":      sessionID,
		"state":           models.SessionClosed,
		"expired_entries": expired,
	})
}

// RecallMemory handles the recall_memory tool
func (h *Handlers) RecallMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := models.MemoryScope(request.GetString("scope", string(models.ScopeLongTerm)))
	query := request.GetString("query", "")
	filter := models.RecallFilter{
		SessionID: request.GetString("session_id", ""),
		Query:     query,
		Limit:     request.GetInt("max_results", 10),
	}
	if query != "" {
		filter.MinRelevance = core.DefaultOrchestratorConfig().MemoryRelevance
	}

	entries, err := h.svc.Recall(ctx, scope, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recall failed: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"scope":   scope,
		"count":   len(entries),
		"entries": entries,
	})
}

// ListFindings handles the list_findings tool
func (h *Handlers) ListFindings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	findings, err := h.svc.ListFindings(ctx, models.FindingFilter{
		SessionID: request.GetString("session_id", ""),
		State:     models.FindingState(request.GetString("state", "")),
		Limit:     request.GetInt("max_results", 20),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list findings: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"count":    len(findings),
		"findings": findings,
	})
}

// PinNote handles the pin_note tool
func (h *Handlers) PinNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}

	entry, err := h.svc.Pin(ctx, sessionID, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to pin note: %v", err)), nil
	}
	return jsonResult(entry)
}

// PromoteMemory handles the promote_memory tool
func (h *Handlers) PromoteMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entryID, err := request.RequireString("entry_id")
	if err != nil {
		return mcp.NewToolResultError("entry_id argument is required and must be a string"), nil
	}

	entry, err := h.svc.Promote(ctx, entryID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to promote memory: %v", err)), nil
	}
	return jsonResult(entry)
}

// RememberMemory handles the remember_memory tool
func (h *Handlers) RememberMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content argument is required and must be a string"), nil
	}
	sessionID := request.GetString("session_id", "")
	entry := models.MemoryEntry{
		Scope:      models.MemoryScope(request.GetString("scope", string(models.ScopeLongTerm))),
		Kind:       models.MemoryKind(request.GetString("kind", string(models.KindNote))),
		SessionID:  sessionID,
		Content:    content,
		Provenance: models.Provenance{SessionID: sessionID},
	}
	ttl := request.GetFloat("ttl_seconds", 0)
	if ttl < 0 {
		return mcp.NewToolResultError("ttl_seconds must not be negative"), nil
	}
	if ttl > 0 {
		expires := time.Now().Add(time.Duration(ttl * float64(time.Second))).UTC()
		entry.ExpiresAt = &expires
	}

	stored, err := h.svc.Remember(ctx, entry)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to remember: %v", err)), nil
	}
	return jsonResult(stored)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
