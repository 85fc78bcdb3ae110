// ABOUTME: Audit export of findings, feedback history and long-term memory
// ABOUTME: Supports YAML and JSON output for point-in-time reconstruction
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harper/riskmem/internal/models"
	"gopkg.in/yaml.v3"
)

// AuditExport is the complete exportable audit trail as of a point in time
type AuditExport struct {
	Version    string                  `yaml:"version" json:"version"`
	ExportedAt string                  `yaml:"exported_at" json:"exported_at"`
	AsOf       string                  `yaml:"as_of" json:"as_of"`
	Tool       string                  `yaml:"tool" json:"tool"`
	Feedback   []models.FeedbackRecord `yaml:"feedback" json:"feedback"`
	Findings   []models.RiskFinding    `yaml:"findings" json:"findings"`
	Memory     []models.MemoryEntry    `yaml:"long_term_memory" json:"long_term_memory"`
}

// Export gathers the feedback records created at or before asOf, every finding
// those records touched, and every long-term memory entry ever written.
func (s *Storage) Export(ctx context.Context, asOf time.Time) (*AuditExport, error) {
	data := &AuditExport{
		Version:    "1.0",
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		AsOf:       asOf.UTC().Format(time.RFC3339Nano),
		Tool:       "riskmem",
	}

	records, err := s.Feedback.ListAsOf(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	data.Feedback = records

	seen := make(map[string]bool)
	for _, r := range records {
		for _, id := range []string{r.FindingID, r.ResultingFindingID} {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			f, err := s.Findings.Get(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to get finding %s: %w", id, err)
			}
			data.Findings = append(data.Findings, *f)
		}
	}

	memory, err := s.Memories.ListAll(ctx, models.ScopeLongTerm)
	if err != nil {
		return nil, fmt.Errorf("failed to list long-term memory: %w", err)
	}
	for _, m := range memory {
		if m.CreatedAt.After(asOf) {
			continue
		}
		data.Memory = append(data.Memory, m)
	}

	return data, nil
}

// WriteYAML encodes the export as YAML
func (e *AuditExport) WriteYAML(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(e); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// WriteJSON encodes the export as indented JSON
func (e *AuditExport) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(e); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
