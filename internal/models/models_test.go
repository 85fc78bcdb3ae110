// ABOUTME: Tests for domain model helpers
// ABOUTME: Covers enum validity, severity parsing, expiry and not-found matching
package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{in: "low", want: SeverityLow},
		{in: " High ", want: SeverityHigh},
		{in: "CRITICAL", want: SeverityCritical},
		{in: "moderate", want: SeverityMedium},
		{in: "severe", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeverity(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSeverity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSeverity(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFindingState_IsTerminal(t *testing.T) {
	tests := []struct {
		state FindingState
		want  bool
	}{
		{FindingProposed, false},
		{FindingConfirmed, false},
		{FindingRejected, true},
		{FindingSuperseded, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRiskFinding_Validate(t *testing.T) {
	f := RiskFinding{FindingID: "f1", Description: "SQL injection in login", Severity: SeverityHigh, Confidence: 0.8}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	f.Confidence = 1.5
	if err := f.Validate(); err == nil {
		t.Error("expected error for confidence > 1")
	}
}

func TestMemoryEntry_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name  string
		entry MemoryEntry
		want  bool
	}{
		{name: "live", entry: MemoryEntry{}, want: false},
		{name: "explicitly expired", entry: MemoryEntry{ExpiredAt: &past}, want: true},
		{name: "ttl passed", entry: MemoryEntry{ExpiresAt: &past}, want: true},
		{name: "ttl pending", entry: MemoryEntry{ExpiresAt: &future}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSection_Validate(t *testing.T) {
	s := Section{SectionID: "s1", DocumentID: "d1", Start: 10, End: 15, Text: "hello"}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	s.End = 20
	if err := s.Validate(); err == nil {
		t.Error("expected error when offsets disagree with text length")
	}
}

func TestNotFoundErrors(t *testing.T) {
	for _, err := range []error{ErrDocumentNotFound, ErrSessionNotFound, ErrFindingNotFound, ErrMemoryNotFound} {
		wrapped := fmt.Errorf("lookup: %w", err)
		if !errors.Is(wrapped, ErrNotFound) {
			t.Errorf("%v should match ErrNotFound", err)
		}
		if !errors.Is(wrapped, err) {
			t.Errorf("%v should match itself", err)
		}
	}
	if errors.Is(ErrSessionClosed, ErrNotFound) {
		t.Error("ErrSessionClosed should not match ErrNotFound")
	}
}

func TestEnumValidity(t *testing.T) {
	if !ScopeLongTerm.IsValid() || MemoryScope("forever").IsValid() {
		t.Error("MemoryScope.IsValid mismatch")
	}
	if !KindFeedback.IsValid() || MemoryKind("").IsValid() {
		t.Error("MemoryKind.IsValid mismatch")
	}
	if !VerdictEdited.IsValid() || Verdict("maybe").IsValid() {
		t.Error("Verdict.IsValid mismatch")
	}
	if !PolicyAuto.IsValid() || BoundaryPolicy("sentence").IsValid() {
		t.Error("BoundaryPolicy.IsValid mismatch")
	}
}
