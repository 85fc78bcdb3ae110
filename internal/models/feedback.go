// ABOUTME: FeedbackRecord is an immutable expert verdict on a finding
// ABOUTME: Records are append-only and ordered by a monotonic sequence
package models

import "time"

// Verdict is the expert's judgement on a finding
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictRejected Verdict = "rejected"
	VerdictEdited   Verdict = "edited"
)

// IsValid reports whether v is a known verdict
func (v Verdict) IsValid() bool {
	return v == VerdictAccepted || v == VerdictRejected || v == VerdictEdited
}

// FeedbackRecord is one immutable correction
type FeedbackRecord struct {
	FeedbackID         string    `json:"feedback_id" yaml:"feedback_id"`
	Seq                int64     `json:"seq" yaml:"seq"`
	FindingID          string    `json:"finding_id" yaml:"finding_id"`
	Verdict            Verdict   `json:"verdict" yaml:"verdict"`
	Rationale          string    `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Author             string    `json:"author" yaml:"author"`
	EditedDescription  string    `json:"edited_description,omitempty" yaml:"edited_description,omitempty"`
	EditedSeverity     Severity  `json:"edited_severity,omitempty" yaml:"edited_severity,omitempty"`
	ResultingFindingID string    `json:"resulting_finding_id,omitempty" yaml:"resulting_finding_id,omitempty"`
	CreatedAt          time.Time `json:"created_at" yaml:"created_at"`
}

// FeedbackInput is a verdict submitted against a finding
type FeedbackInput struct {
	FindingID         string   `json:"finding_id"`
	Verdict           Verdict  `json:"verdict"`
	Rationale         string   `json:"rationale,omitempty"`
	Author            string   `json:"author"`
	EditedDescription string   `json:"edited_description,omitempty"`
	EditedSeverity    Severity `json:"edited_severity,omitempty"`
}

// FeedbackResult is everything one feedback submission produced
type FeedbackResult struct {
	Record      FeedbackRecord `json:"record"`
	Finding     RiskFinding    `json:"finding"`
	NewFinding  *RiskFinding   `json:"new_finding,omitempty"`
	MemoryEntry MemoryEntry    `json:"memory_entry"`
}

// ContextAssociation is the cumulative feedback weight of a section
type ContextAssociation struct {
	SectionID string    `json:"section_id"`
	Weight    float64   `json:"weight"`
	UpdatedAt time.Time `json:"updated_at"`
}
