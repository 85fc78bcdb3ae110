// ABOUTME: Mirrors findings, feedback records and long-term memory into a KV store
// ABOUTME: Pushes are idempotent; keys are derived from stable IDs and sequence numbers
package charm

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
)

// Store is the key/value surface a Mirror writes to
type Store interface {
	SetJSON(key string, value interface{}) error
	ListKeys(prefix string) ([]string, error)
	Sync() error
}

// PushStats counts what one push wrote
type PushStats struct {
	Findings int       `json:"findings"`
	Feedback int       `json:"feedback"`
	Memory   int       `json:"long_term_memory"`
	PushedAt time.Time `json:"pushed_at"`
}

// Mirror copies the audit trail from local storage into a KV store
type Mirror struct {
	store    *sqlite.Storage
	kv       Store
	autoSync bool
	logger   *log.Logger
}

// NewMirror creates a Mirror. When autoSync is set each push ends with a sync.
func NewMirror(store *sqlite.Storage, kv Store, autoSync bool) *Mirror {
	return &Mirror{
		store:    store,
		kv:       kv,
		autoSync: autoSync,
		logger:   log.WithPrefix("charm"),
	}
}

// Push writes every finding, every feedback record and every long-term memory entry
func (m *Mirror) Push(ctx context.Context) (*PushStats, error) {
	stats := &PushStats{PushedAt: time.Now().UTC()}

	findings, err := m.store.Findings.List(ctx, models.FindingFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	for _, f := range findings {
		if err := m.kv.SetJSON(FindingKey(f.FindingID), f); err != nil {
			return nil, err
		}
		stats.Findings++
	}

	records, err := m.store.Feedback.ListAsOf(ctx, stats.PushedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	for _, r := range records {
		if err := m.kv.SetJSON(FeedbackKey(r.Seq), r); err != nil {
			return nil, err
		}
		stats.Feedback++
	}

	memory, err := m.store.Memories.ListAll(ctx, models.ScopeLongTerm)
	if err != nil {
		return nil, fmt.Errorf("failed to list long-term memory: %w", err)
	}
	for _, e := range memory {
		if err := m.kv.SetJSON(MemoryKey(e.EntryID), e); err != nil {
			return nil, err
		}
		stats.Memory++
	}

	if err := m.kv.SetJSON(LastPushKey(), stats); err != nil {
		return nil, err
	}

	if m.autoSync {
		if err := m.kv.Sync(); err != nil {
			return nil, fmt.Errorf("failed to sync: %w", err)
		}
	}

	m.logger.Info("pushed", "findings", stats.Findings, "feedback", stats.Feedback, "memory", stats.Memory)
	return stats, nil
}

// Counts returns how many mirrored keys of each kind the KV store holds
func (m *Mirror) Counts() (map[string]int, error) {
	counts := make(map[string]int)
	for _, prefix := range []string{FindingPrefix, FeedbackPrefix, MemoryPrefix} {
		keys, err := m.kv.ListKeys(prefix)
		if err != nil {
			return nil, err
		}
		counts[prefix[:len(prefix)-1]] = len(keys)
	}
	return counts, nil
}
