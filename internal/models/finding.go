// ABOUTME: RiskFinding is a structured security risk produced by one assessment
// ABOUTME: Findings move proposed -> confirmed | rejected | superseded and are never deleted
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FindingState is the lifecycle state of a finding
type FindingState string

const (
	FindingProposed   FindingState = "proposed"
	FindingConfirmed  FindingState = "confirmed"
	FindingRejected   FindingState = "rejected"
	FindingSuperseded FindingState = "superseded"
)

// IsTerminal reports whether no further feedback may be applied
func (s FindingState) IsTerminal() bool {
	return s == FindingRejected || s == FindingSuperseded
}

// Severity is a coarse risk rating
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity normalizes a severity string
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium, "moderate":
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// RiskFinding is a candidate security risk
type RiskFinding struct {
	FindingID    string       `json:"finding_id" yaml:"finding_id"`
	SessionID    string       `json:"session_id" yaml:"session_id"`
	Query        string       `json:"query" yaml:"query"`
	Description  string       `json:"description" yaml:"description"`
	Severity     Severity     `json:"severity" yaml:"severity"`
	Confidence   float64      `json:"confidence" yaml:"confidence"`
	ContextRefs  []ContextRef `json:"context_refs" yaml:"context_refs"`
	State        FindingState `json:"state" yaml:"state"`
	SupersedesID string       `json:"supersedes_id,omitempty" yaml:"supersedes_id,omitempty"`
	SupersededBy string       `json:"superseded_by,omitempty" yaml:"superseded_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" yaml:"updated_at"`
}

// Validate checks the finding's required fields
func (f *RiskFinding) Validate() error {
	if f.FindingID == "" {
		return errors.New("finding ID cannot be empty")
	}
	if f.Description == "" {
		return errors.New("description cannot be empty")
	}
	if _, err := ParseSeverity(string(f.Severity)); err != nil {
		return err
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("confidence must be 0-1, got %f", f.Confidence)
	}
	return nil
}

// FindingFilter narrows a findings listing
type FindingFilter struct {
	SessionID string
	State     FindingState
	Limit     int
}
