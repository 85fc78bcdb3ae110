// ABOUTME: Hybrid retriever: chunk-level similarity search resolved to parent sections
// ABOUTME: Deduplicates by section, ranks deterministically, merges pinned memory under a size budget
package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/internal/metrics"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
)

// RetrieverConfig tunes retrieval
type RetrieverConfig struct {
	TopK        int
	MinScore    float64
	BudgetChars int
	TieEpsilon  float64
}

// DefaultRetrieverConfig returns the retrieval defaults
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		TopK:        8,
		MinScore:    0.2,
		BudgetChars: 8000,
		TieEpsilon:  0.005,
	}
}

// Retriever assembles ranked section context for a query
type Retriever struct {
	store    *sqlite.Storage
	embedder Embedder
	memory   *MemoryManager
	cfg      RetrieverConfig
	logger   *log.Logger
}

// NewRetriever creates a Retriever. memory may be nil, in which case no pinned
// entries are merged.
func NewRetriever(store *sqlite.Storage, embedder Embedder, memory *MemoryManager, cfg RetrieverConfig) *Retriever {
	if cfg.TopK < 1 {
		cfg.TopK = DefaultRetrieverConfig().TopK
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		memory:   memory,
		cfg:      cfg,
		logger:   log.WithPrefix("retriever"),
	}
}

// LookupChunksBySimilarity returns the k chunks closest to the query embedding
func (r *Retriever) LookupChunksBySimilarity(ctx context.Context, queryEmbedding []float64, k int) ([]models.ScoredChunk, error) {
	return r.store.Embeddings.SearchSimilar(ctx, queryEmbedding, r.embedder.Model(), k)
}

// GetParent returns the section a chunk belongs to
func (r *Retriever) GetParent(ctx context.Context, chunk models.Chunk) (*models.Section, error) {
	return r.store.Sections.Get(ctx, chunk.SectionID)
}

// Retrieve returns pinned session notes followed by ranked parent sections.
// An empty index or no chunk above the score floor yields pinned context only.
// Retrieval never writes to the store.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string) (*models.RetrievedContext, error) {
	start := time.Now()
	defer func() { metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	result := &models.RetrievedContext{}

	if r.memory != nil && sessionID != "" {
		pinned, err := r.memory.Peek(ctx, models.ScopeShortTerm, models.RecallFilter{
			SessionID:  sessionID,
			PinnedOnly: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load pinned memory: %w", err)
		}
		// oldest pin first reads in the order the analyst wrote them
		for i := len(pinned) - 1; i >= 0; i-- {
			result.Pinned = append(result.Pinned, pinned[i])
		}
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.LookupChunksBySimilarity(ctx, vec, r.cfg.TopK)
	if errors.Is(err, models.ErrEmptyIndex) {
		r.logger.Debug("empty index", "model", r.embedder.Model())
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	best := make(map[string]models.ScoredChunk)
	for _, hit := range hits {
		if hit.Score < r.cfg.MinScore {
			continue
		}
		cur, ok := best[hit.Chunk.SectionID]
		if !ok || hit.Score > cur.Score {
			best[hit.Chunk.SectionID] = hit
		}
	}
	if len(best) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	weights, err := r.store.Associations.Weights(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load association weights: %w", err)
	}

	ranked := make([]models.RetrievedSection, 0, len(best))
	for _, id := range ids {
		hit := best[id]
		sec, err := r.GetParent(ctx, hit.Chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to load section %s: %w", id, err)
		}
		ranked = append(ranked, models.RetrievedSection{
			Section:        *sec,
			Representative: hit.Chunk,
			Score:          hit.Score,
			Weight:         weights[id],
		})
	}
	r.rank(ranked)

	result.Sections = r.fitBudget(result.Pinned, ranked)
	metrics.RetrievedSections.Observe(float64(len(result.Sections)))
	r.logger.Debug("retrieved", "hits", len(hits), "sections", len(result.Sections), "pinned", len(result.Pinned))
	return result, nil
}

// rank orders sections by score bucket, association weight, raw score, recency, then id.
// Within a bucket weight decides first; otherwise the higher score still wins.
func (r *Retriever) rank(sections []models.RetrievedSection) {
	bucket := func(score float64) float64 {
		if r.cfg.TieEpsilon <= 0 {
			return score
		}
		return math.Floor(score / r.cfg.TieEpsilon)
	}
	sort.SliceStable(sections, func(i, j int) bool {
		a, b := sections[i], sections[j]
		if ba, bb := bucket(a.Score), bucket(b.Score); ba != bb {
			return ba > bb
		}
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Section.IngestedAt.Equal(b.Section.IngestedAt) {
			return a.Section.IngestedAt.After(b.Section.IngestedAt)
		}
		return a.Section.SectionID < b.Section.SectionID
	})
}

// fitBudget keeps the longest rank prefix that fits after pinned content
func (r *Retriever) fitBudget(pinned []models.MemoryEntry, ranked []models.RetrievedSection) []models.RetrievedSection {
	if r.cfg.BudgetChars <= 0 {
		return ranked
	}
	used := 0
	for _, p := range pinned {
		used += len(p.Content)
	}
	for i, s := range ranked {
		used += len(s.Section.Text)
		if used > r.cfg.BudgetChars {
			return ranked[:i]
		}
	}
	return ranked
}
