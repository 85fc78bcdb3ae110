// ABOUTME: ChunkEngine splits a section into fixed-size overlapping chunks for embedding
// ABOUTME: Chunk boundaries fall on UTF-8 rune boundaries and leave no gaps
package core

import (
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/harper/riskmem/internal/models"
)

const (
	// DefaultChunkSize is the default chunk length in bytes
	DefaultChunkSize = 400
	// DefaultChunkOverlap is the default overlap between consecutive chunks in bytes
	DefaultChunkOverlap = 80
)

// ChunkEngine handles fixed-size overlapping chunking
type ChunkEngine struct {
	chunkSize int
	overlap   int
}

// ChunkOption configures a ChunkEngine
type ChunkOption func(*ChunkEngine)

// WithChunkSize sets the chunk size in bytes
func WithChunkSize(size int) ChunkOption {
	return func(ce *ChunkEngine) {
		if size > 0 {
			ce.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in bytes
func WithOverlap(overlap int) ChunkOption {
	return func(ce *ChunkEngine) {
		if overlap >= 0 {
			ce.overlap = overlap
		}
	}
}

// NewChunkEngine creates a new ChunkEngine instance
func NewChunkEngine(opts ...ChunkOption) *ChunkEngine {
	ce := &ChunkEngine{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(ce)
	}
	if ce.overlap >= ce.chunkSize {
		ce.overlap = ce.chunkSize / 4
	}
	return ce
}

// ChunkSection splits a section's text into chunks. The first chunk starts at 0,
// each chunk starts no later than the previous one ends, and the last ends at len(text).
func (ce *ChunkEngine) ChunkSection(section models.Section) []models.Chunk {
	text := section.Text
	if text == "" {
		return nil
	}

	var chunks []models.Chunk
	start := 0
	for {
		end := start + ce.chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeFloor(text, end)
			if end <= start {
				// a single rune wider than the chunk size
				_, width := utf8.DecodeRuneInString(text[start:])
				end = start + width
			}
		}

		chunks = append(chunks, models.Chunk{
			ChunkID:    generateChunkID(),
			SectionID:  section.SectionID,
			DocumentID: section.DocumentID,
			Ordinal:    len(chunks),
			Start:      start,
			End:        end,
			Text:       text[start:end],
		})

		if end == len(text) {
			return chunks
		}

		next := runeFloor(text, end-ce.overlap)
		if next <= start {
			next = end
		}
		start = next
	}
}

// runeFloor moves i back to the start of the rune containing it
func runeFloor(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// generateChunkID generates a unique chunk ID
func generateChunkID() string {
	return "chunk_" + uuid.New().String()
}
