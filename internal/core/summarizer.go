// ABOUTME: Summarizer produces a security-focused summary of one ingested document
// ABOUTME: Builds a bounded prompt from the document's sections in order
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
)

const summarySystemPrompt = `You are a security architect. Summarize the project described by the requirements
below for a threat-modelling review: its purpose, the assets and data it handles, its external interfaces
and trust boundaries, and the areas most likely to carry security risk. Answer in plain prose, at most
three short paragraphs.`

// SystemReasoner is a Reasoner that also accepts a system prompt
type SystemReasoner interface {
	GenerateWithSystem(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// Summarizer summarizes documents
type Summarizer struct {
	store       *sqlite.Storage
	segmenter   *Segmenter
	reasoner    Reasoner
	budgetChars int
	maxTokens   int
	timeout     time.Duration
	logger      *log.Logger
}

// NewSummarizer creates a Summarizer
func NewSummarizer(store *sqlite.Storage, segmenter *Segmenter, reasoner Reasoner, cfg OrchestratorConfig) *Summarizer {
	return &Summarizer{
		store:       store,
		segmenter:   segmenter,
		reasoner:    reasoner,
		budgetChars: cfg.PromptBudgetChars,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.ReasoningTimeout,
		logger:      log.WithPrefix("summary"),
	}
}

// Summarize returns the summary of a stored document
func (s *Summarizer) Summarize(ctx context.Context, documentID string) (string, error) {
	doc, err := s.store.Documents.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	sections, err := s.store.Sections.ListByDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to list sections: %w", err)
	}

	return s.generate(ctx, s.buildPrompt(doc.Title, doc.ID, sections))
}

// SummarizeText summarizes raw text without storing it
func (s *Summarizer) SummarizeText(ctx context.Context, projectName, body string) (string, error) {
	sections, err := s.segmenter.Segment("inline", body, time.Now().UTC())
	if err != nil {
		return "", err
	}
	return s.generate(ctx, s.buildPrompt(projectName, "untitled project", sections))
}

func (s *Summarizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var reply string
	var err error
	if sr, ok := s.reasoner.(SystemReasoner); ok {
		reply, err = sr.GenerateWithSystem(ctx, summarySystemPrompt, prompt, s.maxTokens)
	} else {
		reply, err = s.reasoner.Generate(ctx, summarySystemPrompt+"\n\n"+prompt, s.maxTokens)
	}
	if err != nil {
		return "", fmt.Errorf("%w: summary: %w", models.ErrAssessmentUnavailable, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: summary: empty reply", models.ErrAssessmentUnavailable)
	}
	s.logger.Debug("summary generated", "chars", len(reply))
	return reply, nil
}

func (s *Summarizer) buildPrompt(title, fallback string, sections []models.Section) string {
	var sb strings.Builder
	if title == "" {
		title = fallback
	}
	fmt.Fprintf(&sb, "PROJECT: %s\n\nREQUIREMENTS:\n", title)
	for _, sec := range sections {
		text := strings.TrimRight(sec.Text, "\n") + "\n"
		if s.budgetChars > 0 && sb.Len()+len(text) > s.budgetChars {
			sb.WriteString("[remaining sections omitted]\n")
			break
		}
		sb.WriteString(text)
	}
	return sb.String()
}
