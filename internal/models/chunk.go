// ABOUTME: Chunk represents a fixed-size embedded fragment of a Section
// ABOUTME: Offsets are byte positions within the parent section text
package models

// Chunk is an overlapping window over a section, the unit of similarity search.
// Section.Text[Start:End] == Text.
type Chunk struct {
	ChunkID    string    `json:"chunk_id" yaml:"chunk_id"`
	SectionID  string    `json:"section_id" yaml:"section_id"`
	DocumentID string    `json:"document_id" yaml:"document_id"`
	Ordinal    int       `json:"ordinal" yaml:"ordinal"`
	Start      int       `json:"start" yaml:"start"`
	End        int       `json:"end" yaml:"end"`
	Text       string    `json:"text" yaml:"text"`
	Embedding  []float64 `json:"-" yaml:"-"`
}

// ContextRef identifies a section and the chunk that surfaced it
type ContextRef struct {
	SectionID string `json:"section_id" yaml:"section_id"`
	ChunkID   string `json:"chunk_id,omitempty" yaml:"chunk_id,omitempty"`
}
