// ABOUTME: Document and Section represent ingested SRS text and its parent segments
// ABOUTME: Sections partition a document body exactly and carry byte offsets
package models

import (
	"errors"
	"time"
)

// Document is a software requirements specification or user story set submitted as text
type Document struct {
	ID         string            `json:"id" yaml:"id"`
	Title      string            `json:"title" yaml:"title"`
	Source     string            `json:"source,omitempty" yaml:"source,omitempty"`
	Body       string            `json:"body" yaml:"body"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	IngestedAt time.Time         `json:"ingested_at" yaml:"ingested_at"`
}

// DocumentMeta is the caller-supplied description of a document at submission time
type DocumentMeta struct {
	ID       string            `json:"id,omitempty"`
	Title    string            `json:"title"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Section is a parent segment of a document: a requirement, user story, or paragraph block.
// Body[Start:End] == Text.
type Section struct {
	SectionID  string    `json:"section_id" yaml:"section_id"`
	DocumentID string    `json:"document_id" yaml:"document_id"`
	Ordinal    int       `json:"ordinal" yaml:"ordinal"`
	Start      int       `json:"start" yaml:"start"`
	End        int       `json:"end" yaml:"end"`
	Text       string    `json:"text" yaml:"text"`
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`
}

// Validate checks the section's offsets against its text
func (s *Section) Validate() error {
	if s.SectionID == "" {
		return errors.New("section ID cannot be empty")
	}
	if s.DocumentID == "" {
		return errors.New("document ID cannot be empty")
	}
	if s.Start < 0 || s.End < s.Start {
		return errors.New("invalid section offsets")
	}
	if s.End-s.Start != len(s.Text) {
		return errors.New("section offsets do not match text length")
	}
	return nil
}

// BoundaryPolicy selects how a document is segmented into sections
type BoundaryPolicy string

const (
	PolicyParagraph   BoundaryPolicy = "paragraph"
	PolicyRequirement BoundaryPolicy = "requirement"
	PolicyAuto        BoundaryPolicy = "auto"
)

// IsValid reports whether p names a known boundary policy
func (p BoundaryPolicy) IsValid() bool {
	switch p {
	case PolicyParagraph, PolicyRequirement, PolicyAuto:
		return true
	}
	return false
}
