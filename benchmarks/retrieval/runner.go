// ABOUTME: Benchmark runner that ingests each scenario into a fresh in-memory store
// ABOUTME: Runs every query through hybrid retrieval and scores the ranked sections
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/internal/core"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
)

// Runner executes scenarios against one embedder and set of options
type Runner struct {
	embedder core.Embedder
	opts     core.Options
	logger   *log.Logger
}

// NewRunner creates a Runner
func NewRunner(embedder core.Embedder, opts core.Options) *Runner {
	return &Runner{
		embedder: embedder,
		opts:     opts,
		logger:   log.WithPrefix("bench"),
	}
}

// Run executes one scenario. Each scenario gets its own store.
func (r *Runner) Run(ctx context.Context, sc Scenario) (Result, error) {
	result := Result{ScenarioID: sc.ID, ScenarioName: sc.Name}

	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		return result, fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	svc := core.NewService(store, r.embedder, nil, r.opts)
	if _, err := svc.SubmitDocument(ctx, sc.Document, models.DocumentMeta{ID: sc.ID, Title: sc.Name}); err != nil {
		return result, fmt.Errorf("failed to ingest %s: %w", sc.ID, err)
	}
	sess, err := svc.StartSession(ctx)
	if err != nil {
		return result, err
	}
	for _, pin := range sc.Pins {
		if _, err := svc.Pin(ctx, sess.SessionID, pin); err != nil {
			return result, err
		}
	}

	var recallSum, rrSum float64
	pinned := 1.0
	for _, q := range sc.Queries {
		rc, err := svc.Retrieve(ctx, sess.SessionID, q.Text)
		if err != nil {
			return result, fmt.Errorf("query %q: %w", q.Text, err)
		}

		texts := make([]string, 0, len(rc.Sections))
		for _, s := range rc.Sections {
			texts = append(texts, s.Section.Text)
		}
		pins := make([]string, 0, len(rc.Pinned))
		for _, p := range rc.Pinned {
			pins = append(pins, p.Content)
		}

		recall, missing := ContextRecall(texts, q.Expected)
		rr, first := ReciprocalRank(texts, q.Expected)
		if pr := PinnedRecall(pins, sc.Pins); pr < pinned {
			pinned = pr
		}
		recallSum += recall
		rrSum += rr

		outcome := QueryOutcome{Query: q.Text, Missing: missing, FirstHit: first}
		for _, s := range rc.Sections {
			outcome.Retrieved = append(outcome.Retrieved, s.Section.SectionID)
		}
		result.Details = append(result.Details, outcome)
		r.logger.Debug("query", "scenario", sc.ID, "query", q.Text, "recall", recall, "rank", first)
	}

	if n := float64(len(sc.Queries)); n > 0 {
		result.ContextRecall = recallSum / n
		result.MRR = rrSum / n
	}
	result.PinnedRecall = pinned
	result.Status = Status(result.ContextRecall, result.MRR, result.PinnedRecall)
	return result, nil
}

// RunAll executes every scenario
func (r *Runner) RunAll(ctx context.Context) ([]Result, error) {
	scenarios := AllScenarios()
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		res, err := r.Run(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("scenario %s failed: %w", sc.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Summary is the exported benchmark report
type Summary struct {
	Timestamp string   `json:"timestamp"`
	Embedder  string   `json:"embedder"`
	Total     int      `json:"total"`
	Passed    int      `json:"passed"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// Summarize tallies results
func (r *Runner) Summarize(results []Result) Summary {
	s := Summary{
		Timestamp: time.Now().Format(time.RFC3339),
		Embedder:  r.embedder.Model(),
		Total:     len(results),
		Results:   results,
	}
	for _, res := range results {
		if res.Status == "PASS" {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// Export writes the summary as JSON
func (s Summary) Export(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}
