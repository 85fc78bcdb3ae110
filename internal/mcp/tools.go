// ABOUTME: MCP tool definitions and registration for the risk memory server
// ABOUTME: Declares JSON schemas for the document, session, assessment, feedback and memory tools
package mcp

import (
	"github.com/harper/riskmem/internal/core"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with every tool registered
func NewServer(svc *core.Service, version string) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("riskmem", version, mcpserver.WithToolCapabilities(false))
	RegisterTools(server, svc)
	return server
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, svc *core.Service) *Handlers {
	handlers := &Handlers{svc: svc}

	// 1. submit_document - ingest requirements text
	server.AddTool(mcp.Tool{
		Name:        "submit_document",
		Description: "Ingest a requirements document. Re-submitting an existing document_id replaces the previous version.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Full document text",
				},
				"document_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional stable document ID",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Optional human-readable title",
				},
			},
			Required: []string{"text"},
		},
	}, handlers.SubmitDocument)

	// 2. start_session - open an assessment session
	server.AddTool(mcp.Tool{
		Name:        "start_session",
		Description: "Start an assessment session. Returns the session_id used by ask, pin_note and close_session.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.StartSession)

	// 3. ask - run one risk assessment
	server.AddTool(mcp.Tool{
		Name:        "ask",
		Description: "Ask a security question about the ingested requirements. Returns a proposed risk finding with severity, confidence and the sections it was grounded on.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Active session ID",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The security question",
				},
			},
			Required: []string{"session_id", "query"},
		},
	}, handlers.Ask)

	// 4. submit_feedback - expert verdict on a finding
	server.AddTool(mcp.Tool{
		Name:        "submit_feedback",
		Description: "Record an expert verdict on a finding: accepted, rejected or edited. Edits need a new description or severity.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"finding_id": map[string]interface{}{
					"type":        "string",
					"description": "Finding to judge",
				},
				"verdict": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"accepted", "rejected", "edited"},
					"description": "Expert verdict",
				},
				"author": map[string]interface{}{
					"type":        "string",
					"description": "Who is giving the verdict",
				},
				"rationale": map[string]interface{}{
					"type":        "string",
					"description": "Why",
				},
				"edited_description": map[string]interface{}{
					"type":        "string",
					"description": "Corrected description (edited verdict only)",
				},
				"edited_severity": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"low", "medium", "high", "critical"},
					"description": "Corrected severity (edited verdict only)",
				},
			},
			Required: []string{"finding_id", "verdict", "author"},
		},
	}, handlers.SubmitFeedback)

	// 5. close_session - end a session
	server.AddTool(mcp.Tool{
		Name:        "close_session",
		Description: "Close a session. Short-term memory that was not promoted is expired.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session to close",
				},
			},
			Required: []string{"session_id"},
		},
	}, handlers.CloseSession)

	// 6. recall_memory - read memory
	server.AddTool(mcp.Tool{
		Name:        "recall_memory",
		Description: "Recall live memory entries. Long-term memory is shared; short-term memory needs the owning session_id.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"scope": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"short_term", "long_term"},
					"description": "Memory tier (default: long_term)",
					"default":     "long_term",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID, required for short_term",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Optional relevance query",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum entries to return (default: 10)",
					"default":     10,
				},
			},
		},
	}, handlers.RecallMemory)

	// 7. list_findings - browse findings
	server.AddTool(mcp.Tool{
		Name:        "list_findings",
		Description: "List risk findings, newest first, optionally filtered by session or state.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Only findings from this session",
				},
				"state": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"proposed", "confirmed", "rejected", "superseded"},
					"description": "Only findings in this state",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum findings to return (default: 20)",
					"default":     20,
				},
			},
		},
	}, handlers.ListFindings)

	// 8. pin_note - pin context into a session
	server.AddTool(mcp.Tool{
		Name:        "pin_note",
		Description: "Pin a note to a session. Pinned notes are included in every assessment of that session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Active session ID",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Note text",
				},
			},
			Required: []string{"session_id", "text"},
		},
	}, handlers.PinNote)

	// 9. promote_memory - keep a short-term entry
	server.AddTool(mcp.Tool{
		Name:        "promote_memory",
		Description: "Promote a short-term memory entry to long-term so it outlives its session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entry_id": map[string]interface{}{
					"type":        "string",
					"description": "Memory entry ID",
				},
			},
			Required: []string{"entry_id"},
		},
	}, handlers.PromoteMemory)

	// 10. remember_memory - write an entry
	server.AddTool(mcp.Tool{
		Name:        "remember_memory",
		Description: "Write a memory entry. Long-term entries are shared across sessions; short-term entries need an active session_id. ttl_seconds makes the entry expire on its own.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "What to remember",
				},
				"scope": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"short_term", "long_term"},
					"description": "Memory tier (default: long_term)",
					"default":     "long_term",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Owning session, required for short_term",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"note", "turn", "pinned", "feedback"},
					"description": "Entry kind (default: note)",
				},
				"ttl_seconds": map[string]interface{}{
					"type":        "number",
					"description": "Seconds until the entry expires; omit to keep it until expired or evicted",
				},
			},
			Required: []string{"content"},
		},
	}, handlers.RememberMemory)

	return handlers
}
