// ABOUTME: Tests for fixed-size overlapping chunking
// ABOUTME: Verifies offsets, coverage without gaps, overlap and rune-boundary safety
package core

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/harper/riskmem/internal/models"
)

func assertChunkInvariants(t *testing.T, section models.Section, chunks []models.Chunk) {
	t.Helper()
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].Start != 0 {
		t.Errorf("first chunk starts at %d, want 0", chunks[0].Start)
	}
	if last := chunks[len(chunks)-1]; last.End != len(section.Text) {
		t.Errorf("last chunk ends at %d, want %d", last.End, len(section.Text))
	}
	for i, c := range chunks {
		if section.Text[c.Start:c.End] != c.Text {
			t.Errorf("chunk %d text does not match its offsets", i)
		}
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d splits a rune", i)
		}
		if c.SectionID != section.SectionID || c.DocumentID != section.DocumentID {
			t.Errorf("chunk %d has wrong parent", i)
		}
		if c.Ordinal != i {
			t.Errorf("chunk %d ordinal = %d", i, c.Ordinal)
		}
		if i > 0 {
			prev := chunks[i-1]
			if c.Start > prev.End {
				t.Errorf("gap between chunk %d (end %d) and %d (start %d)", i-1, prev.End, i, c.Start)
			}
			if c.Start <= prev.Start {
				t.Errorf("chunk %d does not advance", i)
			}
		}
	}
}

func TestChunkSection_Offsets(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    int
	}{
		{name: "shorter than one chunk", text: "FR-1 Users log in.", size: 100, overlap: 10, want: 1},
		{name: "exact multiple", text: strings.Repeat("a", 40), size: 10, overlap: 0, want: 4},
		{name: "with overlap", text: strings.Repeat("b", 25), size: 10, overlap: 5, want: 4},
		{name: "multibyte runes", text: strings.Repeat("é✓", 30), size: 7, overlap: 3, want: -1},
		{name: "rune wider than chunk", text: "✓✓✓", size: 1, overlap: 0, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := NewChunkEngine(WithChunkSize(tt.size), WithOverlap(tt.overlap))
			section := models.Section{SectionID: "sec_1", DocumentID: "doc_1", Text: tt.text, End: len(tt.text)}
			chunks := ce.ChunkSection(section)
			assertChunkInvariants(t, section, chunks)
			if tt.want >= 0 && len(chunks) != tt.want {
				t.Errorf("len(chunks) = %d, want %d", len(chunks), tt.want)
			}
		})
	}
}

func TestChunkSection_OverlapIsApplied(t *testing.T) {
	ce := NewChunkEngine(WithChunkSize(10), WithOverlap(4))
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := ce.ChunkSection(models.Section{SectionID: "s", DocumentID: "d", Text: text})

	if chunks[1].Start != 6 {
		t.Errorf("second chunk starts at %d, want 6", chunks[1].Start)
	}
	if chunks[0].Text[6:] != chunks[1].Text[:4] {
		t.Errorf("overlap mismatch: %q vs %q", chunks[0].Text[6:], chunks[1].Text[:4])
	}
}

func TestNewChunkEngine_ClampsOverlap(t *testing.T) {
	ce := NewChunkEngine(WithChunkSize(100), WithOverlap(100))
	if ce.overlap != 25 {
		t.Errorf("overlap = %d, want 25", ce.overlap)
	}
}

func TestChunkSection_EmptyText(t *testing.T) {
	if chunks := NewChunkEngine().ChunkSection(models.Section{}); chunks != nil {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkSection_UniqueIDs(t *testing.T) {
	ce := NewChunkEngine(WithChunkSize(5), WithOverlap(1))
	chunks := ce.ChunkSection(models.Section{SectionID: "s", DocumentID: "d", Text: strings.Repeat("x", 50)})
	seen := make(map[string]bool)
	for _, c := range chunks {
		if !strings.HasPrefix(c.ChunkID, "chunk_") {
			t.Errorf("ChunkID %q missing prefix", c.ChunkID)
		}
		if seen[c.ChunkID] {
			t.Errorf("duplicate ChunkID %q", c.ChunkID)
		}
		seen[c.ChunkID] = true
	}
}
