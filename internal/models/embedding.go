// ABOUTME: Embedding models for vector storage and similarity search
// ABOUTME: Defines stored chunk vectors and scored search hits
package models

import "time"

// Embedding is a stored vector for one chunk under one embedding model
type Embedding struct {
	ChunkID   string    `json:"chunk_id"`
	Model     string    `json:"model"`
	Vector    []float64 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredChunk is a similarity search hit
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievedSection is one ranked entry of assembled context: a parent section,
// the best-scoring chunk that surfaced it, and that chunk's score.
type RetrievedSection struct {
	Section        Section `json:"section"`
	Representative Chunk   `json:"representative_chunk"`
	Score          float64 `json:"score"`
	Weight         float64 `json:"association_weight"`
}

// RetrievedContext is the output of hybrid retrieval
type RetrievedContext struct {
	Pinned   []MemoryEntry      `json:"pinned,omitempty"`
	Sections []RetrievedSection `json:"sections"`
}

// Refs returns the context references of the retrieved sections in rank order
func (c *RetrievedContext) Refs() []ContextRef {
	refs := make([]ContextRef, 0, len(c.Sections))
	for _, s := range c.Sections {
		refs = append(refs, ContextRef{SectionID: s.Section.SectionID, ChunkID: s.Representative.ChunkID})
	}
	return refs
}
