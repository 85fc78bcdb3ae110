// ABOUTME: Service is the core boundary used by the CLI, HTTP API, MCP server and watcher
// ABOUTME: Wires ingestion, retrieval, memory, assessment and feedback over one store
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harper/riskmem/internal/config"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
)

// ErrNoReasoner is returned when no reasoning capability is configured
var ErrNoReasoner = errors.New("no reasoning capability configured")

// Options configures a Service
type Options struct {
	BoundaryPolicy   models.BoundaryPolicy
	ChunkSize        int
	ChunkOverlap     int
	EmbedConcurrency int
	LongTermCapacity int
	Retriever        RetrieverConfig
	Orchestrator     OrchestratorConfig
}

// DefaultOptions returns the built-in defaults
func DefaultOptions() Options {
	return Options{
		BoundaryPolicy:   models.PolicyAuto,
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		EmbedConcurrency: 4,
		LongTermCapacity: DefaultLongTermCapacity,
		Retriever:        DefaultRetrieverConfig(),
		Orchestrator:     DefaultOrchestratorConfig(),
	}
}

// OptionsFromConfig maps loaded configuration onto service options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BoundaryPolicy:   models.BoundaryPolicy(cfg.BoundaryPolicy),
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		EmbedConcurrency: cfg.EmbedConcurrency,
		LongTermCapacity: cfg.LongTermCapacity,
		Retriever: RetrieverConfig{
			TopK:        cfg.TopK,
			MinScore:    cfg.MinScore,
			BudgetChars: cfg.ContextBudgetChars,
			TieEpsilon:  cfg.TieEpsilon,
		},
		Orchestrator: OrchestratorConfig{
			ReasoningTimeout:  cfg.ReasoningTimeout,
			MaxTokens:         cfg.MaxTokens,
			PromptBudgetChars: cfg.PromptBudgetChars,
			MemoryRelevance:   cfg.MemoryRelevance,
			MemoryLimit:       cfg.MemoryLimit,
		},
	}
}

// Service is the risk retrieval and memory core
type Service struct {
	store        *sqlite.Storage
	ingestor     *Ingestor
	retriever    *Retriever
	memory       *MemoryManager
	feedback     *FeedbackLoop
	orchestrator *Orchestrator
	summarizer   *Summarizer
}

// NewService wires the core. A nil reasoner makes Ask and Summarize fail with
// ErrAssessmentUnavailable.
func NewService(store *sqlite.Storage, embedder Embedder, reasoner Reasoner, opts Options) *Service {
	if reasoner == nil {
		reasoner = offlineReasoner{}
	}
	segmenter := NewSegmenter(opts.BoundaryPolicy)
	chunker := NewChunkEngine(WithChunkSize(opts.ChunkSize), WithOverlap(opts.ChunkOverlap))
	memory := NewMemoryManager(store, opts.LongTermCapacity)
	retriever := NewRetriever(store, embedder, memory, opts.Retriever)

	return &Service{
		store:        store,
		ingestor:     NewIngestor(store, segmenter, chunker, embedder, opts.EmbedConcurrency),
		retriever:    retriever,
		memory:       memory,
		feedback:     NewFeedbackLoop(store, memory),
		orchestrator: NewOrchestrator(store, retriever, memory, reasoner, opts.Orchestrator),
		summarizer:   NewSummarizer(store, segmenter, reasoner, opts.Orchestrator),
	}
}

// Store returns the underlying storage
func (s *Service) Store() *sqlite.Storage {
	return s.store
}

// SubmitDocument ingests raw text and returns what was stored
func (s *Service) SubmitDocument(ctx context.Context, rawText string, meta models.DocumentMeta) (*IngestResult, error) {
	return s.ingestor.Ingest(ctx, rawText, meta)
}

// DeleteDocument removes a document with its sections and chunks
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	return s.ingestor.Delete(ctx, documentID)
}

// ListDocuments returns every stored document
func (s *Service) ListDocuments(ctx context.Context) ([]models.Document, error) {
	return s.store.Documents.List(ctx)
}

// StartSession opens a session
func (s *Service) StartSession(ctx context.Context) (*models.Session, error) {
	return s.memory.StartSession(ctx)
}

// CloseSession closes a session after any in-flight assessment on it finishes
func (s *Service) CloseSession(ctx context.Context, sessionID string) (int64, error) {
	unlock := s.orchestrator.LockSession(sessionID)
	defer unlock()
	return s.memory.CloseSession(ctx, sessionID)
}

// GetSession returns a session
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.memory.GetSession(ctx, sessionID)
}

// Ask runs one assessment in a session
func (s *Service) Ask(ctx context.Context, sessionID, query string) (*models.RiskFinding, error) {
	return s.orchestrator.Assess(ctx, sessionID, query)
}

// Retrieve returns the context an assessment of query would see
func (s *Service) Retrieve(ctx context.Context, sessionID, query string) (*models.RetrievedContext, error) {
	return s.retriever.Retrieve(ctx, sessionID, query)
}

// SubmitFeedback applies an expert verdict to a finding
func (s *Service) SubmitFeedback(ctx context.Context, in models.FeedbackInput) (*models.FeedbackResult, error) {
	return s.feedback.Submit(ctx, in)
}

// Pin stores a note that every retrieval in the session includes
func (s *Service) Pin(ctx context.Context, sessionID, text string) (*models.MemoryEntry, error) {
	return s.memory.Pin(ctx, sessionID, text)
}

// Remember stores a memory entry
func (s *Service) Remember(ctx context.Context, entry models.MemoryEntry) (*models.MemoryEntry, error) {
	return s.memory.Remember(ctx, entry)
}

// Recall returns live memory entries of a scope
func (s *Service) Recall(ctx context.Context, scope models.MemoryScope, filter models.RecallFilter) ([]models.MemoryEntry, error) {
	return s.memory.Recall(ctx, scope, filter)
}

// Promote moves a short-term entry to long-term memory
func (s *Service) Promote(ctx context.Context, entryID string) (*models.MemoryEntry, error) {
	return s.memory.Promote(ctx, entryID)
}

// Expire soft-deletes a memory entry
func (s *Service) Expire(ctx context.Context, entryID string) (*models.MemoryEntry, error) {
	return s.memory.Expire(ctx, entryID)
}

// ListFindings lists findings, newest first
func (s *Service) ListFindings(ctx context.Context, filter models.FindingFilter) ([]models.RiskFinding, error) {
	return s.store.Findings.List(ctx, filter)
}

// GetFinding returns one finding
func (s *Service) GetFinding(ctx context.Context, findingID string) (*models.RiskFinding, error) {
	return s.store.Findings.Get(ctx, findingID)
}

// FindingFeedback returns the feedback recorded against a finding
func (s *Service) FindingFeedback(ctx context.Context, findingID string) ([]models.FeedbackRecord, error) {
	return s.feedback.History(ctx, findingID)
}

// AuditFeedback lists feedback records created at or before asOf
func (s *Service) AuditFeedback(ctx context.Context, asOf time.Time) ([]models.FeedbackRecord, error) {
	return s.feedback.Audit(ctx, asOf)
}

// Export returns the full audit trail as of a point in time
func (s *Service) Export(ctx context.Context, asOf time.Time) (*sqlite.AuditExport, error) {
	return s.store.Export(ctx, asOf)
}

// Summarize returns a security summary of a stored document
func (s *Service) Summarize(ctx context.Context, documentID string) (string, error) {
	return s.summarizer.Summarize(ctx, documentID)
}

// SummarizeText returns a security summary of raw text without storing it
func (s *Service) SummarizeText(ctx context.Context, projectName, body string) (string, error) {
	return s.summarizer.SummarizeText(ctx, projectName, body)
}

type offlineReasoner struct{}

func (offlineReasoner) Generate(context.Context, string, int) (string, error) {
	return "", fmt.Errorf("%w: set OPENAI_API_KEY", ErrNoReasoner)
}
