// ABOUTME: Segmenter splits a document body into parent sections that partition it exactly
// ABOUTME: Boundary policies: paragraph blocks, requirement markers, or auto-detection
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/harper/riskmem/internal/models"
)

// requirementMarker matches a line that opens a requirement or user story:
// "FR-12 ...", "[SEC-3.1] ...", "- NFR_2: ...", "3.2.1 ...", "As a user ..."
var requirementMarker = regexp.MustCompile(`^[ \t]*(?:[-*][ \t]+)?(?:\[?[A-Z][A-Z0-9]{0,9}[-_][0-9]+(?:\.[0-9]+)*\]?(?:[:.)]|[ \t]|\r?\n|$)|[0-9]+(?:\.[0-9]+)+\.?[ \t]|(?i:as an?)[ \t])`)

// Segmenter splits documents into sections
type Segmenter struct {
	policy models.BoundaryPolicy
}

// NewSegmenter creates a Segmenter for the given policy
func NewSegmenter(policy models.BoundaryPolicy) *Segmenter {
	return &Segmenter{policy: policy}
}

// Policy returns the configured boundary policy
func (s *Segmenter) Policy() models.BoundaryPolicy {
	return s.policy
}

type line struct {
	start, end int
	blank      bool
	marker     bool
}

// Segment partitions body into sections. Offsets are byte offsets; section i
// ends where section i+1 starts and the last section ends at len(body).
func (s *Segmenter) Segment(documentID, body string, ingestedAt time.Time) ([]models.Section, error) {
	if !s.policy.IsValid() {
		return nil, fmt.Errorf("%w: unknown boundary policy %q", models.ErrMalformedDocument, s.policy)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: document body is empty", models.ErrMalformedDocument)
	}
	if !utf8.ValidString(body) {
		return nil, fmt.Errorf("%w: document body is not valid UTF-8", models.ErrMalformedDocument)
	}

	lines := splitLines(body)

	policy := s.policy
	if policy == models.PolicyAuto {
		policy = models.PolicyParagraph
		for _, l := range lines {
			if l.marker {
				policy = models.PolicyRequirement
				break
			}
		}
	}

	var starts []int
	switch policy {
	case models.PolicyRequirement:
		starts = requirementStarts(lines)
		if len(starts) == 0 {
			return nil, fmt.Errorf("%w: no requirement or user story markers found", models.ErrMalformedDocument)
		}
	default:
		starts = paragraphStarts(lines)
	}

	sections := make([]models.Section, 0, len(starts))
	for i, start := range starts {
		end := len(body)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		text := body[start:end]
		sections = append(sections, models.Section{
			SectionID:  sectionID(documentID, i, text),
			DocumentID: documentID,
			Ordinal:    i,
			Start:      start,
			End:        end,
			Text:       text,
			IngestedAt: ingestedAt,
		})
	}
	return sections, nil
}

func splitLines(body string) []line {
	var lines []line
	start := 0
	for start < len(body) {
		end := strings.IndexByte(body[start:], '\n')
		if end < 0 {
			end = len(body)
		} else {
			end = start + end + 1
		}
		text := body[start:end]
		lines = append(lines, line{
			start:  start,
			end:    end,
			blank:  strings.TrimSpace(text) == "",
			marker: requirementMarker.MatchString(text),
		})
		start = end
	}
	return lines
}

// paragraphStarts opens a section at the first non-blank line after a blank run.
// Leading blank lines belong to the first section; separators to the one before.
func paragraphStarts(lines []line) []int {
	starts := []int{0}
	seenContent := false
	prevBlank := false
	for _, l := range lines {
		if l.blank {
			prevBlank = true
			continue
		}
		if seenContent && prevBlank {
			starts = append(starts, l.start)
		}
		seenContent = true
		prevBlank = false
	}
	return starts
}

// requirementStarts opens a section at every marker line. Non-blank text before
// the first marker is its own preamble section; a blank preamble joins the first section.
func requirementStarts(lines []line) []int {
	var starts []int
	preambleHasContent := false
	for _, l := range lines {
		if l.marker {
			switch {
			case len(starts) > 0:
				starts = append(starts, l.start)
			case preambleHasContent:
				starts = append(starts, 0, l.start)
			default:
				starts = append(starts, 0)
			}
			continue
		}
		if len(starts) == 0 && !l.blank {
			preambleHasContent = true
		}
	}
	return starts
}

// sectionID is stable across re-ingestion of unchanged text so feedback
// associations keep pointing at the same content.
func sectionID(documentID string, ordinal int, text string) string {
	name := documentID + "\x00" + strconv.Itoa(ordinal) + "\x00" + text
	return "sec_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
