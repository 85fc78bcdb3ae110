// ABOUTME: Parses the reasoning capability's reply into a structured assessment
// ABOUTME: Tolerates code fences and surrounding prose; rejects missing or out-of-range fields
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/riskmem/internal/models"
)

// Assessment is a parsed reasoning reply
type Assessment struct {
	Description string
	Severity    models.Severity
	Confidence  float64
}

type rawAssessment struct {
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Confidence  *float64 `json:"confidence"`
}

// ParseAssessment extracts the first JSON object in text
func ParseAssessment(text string) (*Assessment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object in reply")
	}

	var raw rawAssessment
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse reply: %w", err)
	}

	desc := strings.TrimSpace(raw.Description)
	if desc == "" {
		return nil, errors.New("reply has no description")
	}
	sev, err := models.ParseSeverity(raw.Severity)
	if err != nil {
		return nil, err
	}
	if raw.Confidence == nil {
		return nil, errors.New("reply has no confidence")
	}
	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range [0,1]", *raw.Confidence)
	}

	return &Assessment{Description: desc, Severity: sev, Confidence: *raw.Confidence}, nil
}
