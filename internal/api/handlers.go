// ABOUTME: Gin handlers for documents, sessions, findings, feedback, memory and audit
// ABOUTME: Binds JSON requests, calls the core service and renders JSON responses
package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/harper/riskmem/internal/models"
)

type submitDocumentRequest struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Source   string            `json:"source"`
	Body     string            `json:"body" binding:"required"`
	Metadata map[string]string `json:"metadata"`
}

type askRequest struct {
	Query string `json:"query" binding:"required"`
}

type pinRequest struct {
	Text string `json:"text" binding:"required"`
}

type feedbackRequest struct {
	Verdict           models.Verdict  `json:"verdict" binding:"required,oneof=accepted rejected edited"`
	Rationale         string          `json:"rationale"`
	Author            string          `json:"author" binding:"required"`
	EditedDescription string          `json:"edited_description"`
	EditedSeverity    models.Severity `json:"edited_severity"`
}

type rememberRequest struct {
	Scope      models.MemoryScope `json:"scope"`
	Kind       models.MemoryKind  `json:"kind"`
	SessionID  string             `json:"session_id"`
	Content    string             `json:"content" binding:"required"`
	TTLSeconds int64              `json:"ttl_seconds" binding:"gte=0"`
}

type summaryRequest struct {
	Content     string `json:"content" binding:"required"`
	ProjectName string `json:"project_name"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := s.svc.ListDocuments(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) submitDocument(c *gin.Context) {
	var req submitDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.svc.SubmitDocument(c.Request.Context(), req.Body, models.DocumentMeta{
		ID:       req.ID,
		Title:    req.Title,
		Source:   req.Source,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"document_id": res.Document.ID,
		"sections":    len(res.Sections),
		"chunks":      len(res.Chunks),
	})
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.svc.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) summarizeDocument(c *gin.Context) {
	summary, err := s.svc.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_summary": summary})
}

// generateSummary summarizes base64-encoded text without storing it
func (s *Server) generateSummary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		badRequest(c, fmt.Errorf("content is not valid base64: %w", err))
		return
	}
	summary, err := s.svc.SummarizeText(c.Request.Context(), req.ProjectName, string(raw))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_summary": summary})
}

func (s *Server) startSession(c *gin.Context) {
	sess, err := s.svc.StartSession(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) closeSession(c *gin.Context) {
	expired, err := s.svc.CloseSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "expired_entries": expired})
}

func (s *Server) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	finding, err := s.svc.Ask(c.Request.Context(), c.Param("id"), req.Query)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, finding)
}

func (s *Server) pin(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := s.svc.Pin(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) sessionMemory(c *gin.Context) {
	entries, err := s.svc.Recall(c.Request.Context(), models.ScopeShortTerm, models.RecallFilter{
		SessionID: c.Param("id"),
		Query:     c.Query("q"),
		Limit:     queryInt(c, "limit"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) listFindings(c *gin.Context) {
	filter := models.FindingFilter{
		SessionID: c.Query("session_id"),
		State:     models.FindingState(c.Query("state")),
		Limit:     queryInt(c, "limit"),
	}
	findings, err := s.svc.ListFindings(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings})
}

func (s *Server) getFinding(c *gin.Context) {
	finding, err := s.svc.GetFinding(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, finding)
}

func (s *Server) submitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.svc.SubmitFeedback(c.Request.Context(), models.FeedbackInput{
		FindingID:         c.Param("id"),
		Verdict:           req.Verdict,
		Rationale:         req.Rationale,
		Author:            req.Author,
		EditedDescription: req.EditedDescription,
		EditedSeverity:    req.EditedSeverity,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) findingFeedback(c *gin.Context) {
	records, err := s.svc.FindingFeedback(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": records})
}

func (s *Server) remember(c *gin.Context) {
	var req rememberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Scope == "" {
		req.Scope = models.ScopeLongTerm
	}
	entry := models.MemoryEntry{
		Scope:      req.Scope,
		Kind:       req.Kind,
		SessionID:  req.SessionID,
		Content:    req.Content,
		Provenance: models.Provenance{SessionID: req.SessionID},
	}
	if req.TTLSeconds > 0 {
		expires := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second).UTC()
		entry.ExpiresAt = &expires
	}
	stored, err := s.svc.Remember(c.Request.Context(), entry)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (s *Server) longTermMemory(c *gin.Context) {
	filter := models.RecallFilter{
		Query: c.Query("q"),
		Limit: queryInt(c, "limit"),
	}
	if kind := c.Query("kind"); kind != "" {
		filter.Kinds = []models.MemoryKind{models.MemoryKind(kind)}
	}
	if rel := c.Query("min_relevance"); rel != "" {
		v, err := strconv.ParseFloat(rel, 64)
		if err != nil {
			badRequest(c, fmt.Errorf("min_relevance: %w", err))
			return
		}
		filter.MinRelevance = v
	}
	entries, err := s.svc.Recall(c.Request.Context(), models.ScopeLongTerm, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) promote(c *gin.Context) {
	entry, err := s.svc.Promote(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) expire(c *gin.Context) {
	entry, err := s.svc.Expire(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) auditFeedback(c *gin.Context) {
	asOf, ok := asOfParam(c)
	if !ok {
		return
	}
	records, err := s.svc.AuditFeedback(c.Request.Context(), asOf)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"as_of": asOf.Format(time.RFC3339Nano), "records": records})
}

func (s *Server) auditExport(c *gin.Context) {
	asOf, ok := asOfParam(c)
	if !ok {
		return
	}
	export, err := s.svc.Export(c.Request.Context(), asOf)
	if err != nil {
		s.fail(c, err)
		return
	}
	if c.Query("format") == "yaml" {
		c.YAML(http.StatusOK, export)
		return
	}
	c.JSON(http.StatusOK, export)
}

// asOfParam parses ?as_of=RFC3339, defaulting to now
func asOfParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now().UTC(), true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		badRequest(c, fmt.Errorf("as_of must be RFC3339: %w", err))
		return time.Time{}, false
	}
	return t, true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
