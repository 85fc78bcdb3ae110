// ABOUTME: ContextHydrator assembles assessment prompts from memory and retrieved sections
// ABOUTME: Enforces a character budget by dropping the lowest-priority blocks first
package core

import (
	"fmt"
	"strings"

	"github.com/harper/riskmem/internal/models"
)

const assessmentInstructions = `SYSTEM:
You are a security analyst reviewing software requirements.
Identify the single most important security risk that answers the question below, using only the
provided requirements context and the analyst's notes. Prefer expert feedback over your own judgement
when they conflict.
Respond with JSON only: {"description": string, "severity": "low"|"medium"|"high"|"critical", "confidence": number between 0 and 1}
`

// PromptInput is everything that may go into one assessment prompt
type PromptInput struct {
	Query    string
	Pinned   []models.MemoryEntry
	Feedback []models.MemoryEntry
	Memory   []models.MemoryEntry
	Sections []models.RetrievedSection
}

// Prompt is an assembled prompt and what made it in
type Prompt struct {
	Text     string
	Sections []models.RetrievedSection
	Memory   []models.MemoryEntry
}

// ContextHydrator builds prompts under a character budget
type ContextHydrator struct {
	budgetChars int
}

// NewContextHydrator creates a ContextHydrator. A budget of zero or less means unlimited.
func NewContextHydrator(budgetChars int) *ContextHydrator {
	return &ContextHydrator{budgetChars: budgetChars}
}

type promptBlock struct {
	header  string
	text    string
	memory  *models.MemoryEntry
	section *models.RetrievedSection
}

// Hydrate assembles the prompt. Instructions and the question are always present.
// Optional blocks are added in priority order (pinned notes, expert feedback, other
// memory, sections by rank) until the first one that does not fit; it and everything
// after it are dropped.
func (ch *ContextHydrator) Hydrate(in PromptInput) *Prompt {
	question := "QUESTION:\n" + in.Query + "\n"
	used := len(assessmentInstructions) + 1 + len(question)

	var blocks []promptBlock
	for i := range in.Pinned {
		blocks = append(blocks, promptBlock{header: "ANALYST PINNED NOTES:", text: "- " + in.Pinned[i].Content + "\n", memory: &in.Pinned[i]})
	}
	for i := range in.Feedback {
		blocks = append(blocks, promptBlock{header: "EXPERT FEEDBACK FROM PRIOR ASSESSMENTS:", text: "- " + in.Feedback[i].Content + "\n", memory: &in.Feedback[i]})
	}
	for i := range in.Memory {
		blocks = append(blocks, promptBlock{header: "REMEMBERED CONTEXT:", text: "- " + in.Memory[i].Content + "\n", memory: &in.Memory[i]})
	}
	for i := range in.Sections {
		s := &in.Sections[i]
		text := fmt.Sprintf("[%s] (score %.3f)\n%s\n", s.Section.SectionID, s.Score, strings.TrimRight(s.Section.Text, "\n"))
		blocks = append(blocks, promptBlock{header: "REQUIREMENTS CONTEXT:", text: text, section: s})
	}

	prompt := &Prompt{}
	var sb strings.Builder
	sb.WriteString(assessmentInstructions)
	sb.WriteString("\n")

	current := ""
	for _, b := range blocks {
		cost := len(b.text)
		if b.header != current {
			cost += len(b.header) + 2
		}
		if ch.budgetChars > 0 && used+cost > ch.budgetChars {
			break
		}
		if b.header != current {
			if current != "" {
				sb.WriteString("\n")
			}
			sb.WriteString(b.header)
			sb.WriteString("\n")
			current = b.header
		}
		sb.WriteString(b.text)
		used += cost
		if b.memory != nil {
			prompt.Memory = append(prompt.Memory, *b.memory)
		}
		if b.section != nil {
			prompt.Sections = append(prompt.Sections, *b.section)
		}
	}
	if current != "" {
		sb.WriteString("\n")
	}
	sb.WriteString(question)

	prompt.Text = sb.String()
	return prompt
}

// Refs returns the context references of the sections placed in the prompt
func (p *Prompt) Refs() []models.ContextRef {
	ctx := models.RetrievedContext{Sections: p.Sections}
	return ctx.Refs()
}
