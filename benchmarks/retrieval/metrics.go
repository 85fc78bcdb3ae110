// ABOUTME: Retrieval metrics: context recall, reciprocal rank and pinned recall
// ABOUTME: Deterministic scoring against requirement labels
package retrieval

import (
	"strings"
)

// PassRecall and PassMRR are the thresholds a scenario must meet
const (
	PassRecall = 0.9
	PassMRR    = 0.5
)

// ContextRecall is the fraction of expected labels found among the retrieved section texts.
// It also returns the labels that were missing.
func ContextRecall(retrieved []string, expected []string) (float64, []string) {
	if len(expected) == 0 {
		return 1, nil
	}
	var missing []string
	found := 0
	for _, label := range expected {
		if rankOf(retrieved, label) > 0 {
			found++
		} else {
			missing = append(missing, label)
		}
	}
	return float64(found) / float64(len(expected)), missing
}

// ReciprocalRank is 1/rank of the first retrieved section carrying any expected label, or 0
func ReciprocalRank(retrieved []string, expected []string) (float64, int) {
	best := 0
	for _, label := range expected {
		if r := rankOf(retrieved, label); r > 0 && (best == 0 || r < best) {
			best = r
		}
	}
	if best == 0 {
		return 0, 0
	}
	return 1 / float64(best), best
}

// PinnedRecall is the fraction of pins present in the retrieved pinned notes
func PinnedRecall(got []string, pins []string) float64 {
	if len(pins) == 0 {
		return 1
	}
	found := 0
	for _, p := range pins {
		for _, g := range got {
			if g == p {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(pins))
}

// rankOf returns the 1-based rank of the first section whose text starts with label
func rankOf(retrieved []string, label string) int {
	for i, text := range retrieved {
		if strings.HasPrefix(strings.TrimSpace(text), label+":") {
			return i + 1
		}
	}
	return 0
}

// Status reports PASS when every threshold is met
func Status(recall, mrr, pinned float64) string {
	if recall >= PassRecall && mrr >= PassMRR && pinned == 1 {
		return "PASS"
	}
	return "FAIL"
}
