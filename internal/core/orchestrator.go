// ABOUTME: Orchestrator runs one risk assessment: retrieve, recall, prompt, reason, persist
// ABOUTME: Assessments are serialized per session; a failed assessment stores nothing
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

// OrchestratorConfig tunes assessments
type OrchestratorConfig struct {
	ReasoningTimeout  time.Duration
	MaxTokens         int
	PromptBudgetChars int
	MemoryRelevance   float64
	MemoryLimit       int
}

// DefaultOrchestratorConfig returns the assessment defaults
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ReasoningTimeout:  60 * time.Second,
		MaxTokens:         800,
		PromptBudgetChars: 12000,
		MemoryRelevance:   0.3,
		MemoryLimit:       10,
	}
}

// Orchestrator produces risk findings
type Orchestrator struct {
	store     *sqlite.Storage
	retriever *Retriever
	memory    *MemoryManager
	hydrator  *ContextHydrator
	reasoner  Reasoner
	cfg       OrchestratorConfig
	sessions  *util.KeyedMutex
	logger    *log.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(store *sqlite.Storage, retriever *Retriever, memory *MemoryManager, reasoner Reasoner, cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		store:     store,
		retriever: retriever,
		memory:    memory,
		hydrator:  NewContextHydrator(cfg.PromptBudgetChars),
		reasoner:  reasoner,
		cfg:       cfg,
		sessions:  util.NewKeyedMutex(),
		logger:    log.WithPrefix("assess"),
		now:       time.Now,
	}
}

// LockSession serializes work on one session and returns the unlock func
func (o *Orchestrator) LockSession(sessionID string) func() {
	return o.sessions.Lock(sessionID)
}

// Assess answers a question about the ingested documents with a proposed finding
func (o *Orchestrator) Assess(ctx context.Context, sessionID, query string) (*models.RiskFinding, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", models.ErrInvalidInput)
	}

	unlock := o.LockSession(sessionID)
	defer unlock()

	start := time.Now()
	defer func() { metrics.AssessmentDuration.Observe(time.Since(start).Seconds()) }()

	if _, err := o.memory.ActiveSession(ctx, sessionID); err != nil {
		metrics.Assessments.WithLabelValues("rejected").Inc()
		return nil, err
	}

	retrieved, err := o.retriever.Retrieve(ctx, sessionID, query)
	if err != nil {
		return nil, o.unavailable("retrieval", err)
	}

	longTerm, err := o.memory.Peek(ctx, models.ScopeLongTerm, models.RecallFilter{
		Query:        query,
		MinRelevance: o.cfg.MemoryRelevance,
		Limit:        o.cfg.MemoryLimit,
	})
	if err != nil {
		return nil, o.unavailable("memory recall", err)
	}
	var feedback, other []models.MemoryEntry
	for _, e := range longTerm {
		if e.Kind == models.KindFeedback {
			feedback = append(feedback, e)
		} else {
			other = append(other, e)
		}
	}

	prompt := o.hydrator.Hydrate(PromptInput{
		Query:    query,
		Pinned:   retrieved.Pinned,
		Feedback: feedback,
		Memory:   other,
		Sections: retrieved.Sections,
	})
	o.logger.Debug("prompt built", "session", sessionID, "chars", len(prompt.Text), "sections", len(prompt.Sections))

	reasonCtx := ctx
	if o.cfg.ReasoningTimeout > 0 {
		var cancel context.CancelFunc
		reasonCtx, cancel = context.WithTimeout(ctx, o.cfg.ReasoningTimeout)
		defer cancel()
	}
	reply, err := o.reasoner.Generate(reasonCtx, prompt.Text, o.cfg.MaxTokens)
	if err != nil {
		return nil, o.unavailable("reasoning", err)
	}
	parsed, err := ParseAssessment(reply)
	if err != nil {
		return nil, o.unavailable("parse", err)
	}

	now := o.now().UTC()
	finding := &models.RiskFinding{
		FindingID:   "find_" + uuid.New().String(),
		SessionID:   sessionID,
		Query:       query,
		Description: parsed.Description,
		Severity:    parsed.Severity,
		Confidence:  parsed.Confidence,
		ContextRefs: prompt.Refs(),
		State:       models.FindingProposed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var recalled []models.MemoryEntry
	for _, e := range prompt.Memory {
		if e.Scope == models.ScopeLongTerm {
			recalled = append(recalled, e)
		}
	}

	err = o.store.InTx(ctx, func(tx *sqlite.Stores) error {
		if err := tx.Findings.Insert(ctx, finding); err != nil {
			return fmt.Errorf("failed to store finding: %w", err)
		}
		if _, err := o.memory.rememberTx(ctx, tx, models.MemoryEntry{
			Scope:      models.ScopeShortTerm,
			Kind:       models.KindTurn,
			SessionID:  sessionID,
			Content:    fmt.Sprintf("Q: %s\nFinding (%s): %s", query, finding.Severity, finding.Description),
			FindingID:  finding.FindingID,
			Provenance: models.Provenance{SessionID: sessionID, Query: query},
		}); err != nil {
			return err
		}
		return o.memory.touchTx(ctx, tx, recalled)
	})
	if err != nil {
		metrics.Assessments.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.Assessments.WithLabelValues("ok").Inc()
	o.logger.Info("finding proposed", "session", sessionID, "finding", finding.FindingID, "severity", finding.Severity)
	return finding, nil
}

func (o *Orchestrator) unavailable(stage string, err error) error {
	metrics.Assessments.WithLabelValues("unavailable").Inc()
	o.logger.Warn("assessment unavailable", "stage", stage, "err", err)
	return fmt.Errorf("%w: %s: %w", models.ErrAssessmentUnavailable, stage, err)
}
