// ABOUTME: MemoryManager owns sessions and the short-term and long-term memory tiers
// ABOUTME: Promotion and expiry are explicit; long-term capacity evicts the least recently recalled entry
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/harper/riskmem/internal/metrics"
	"github.com/harper/riskmem/internal/models"
	"github.com/harper/riskmem/internal/storage/sqlite"
	"github.com/harper/riskmem/internal/util"
)

// DefaultLongTermCapacity bounds the live long-term tier when no capacity is configured
const DefaultLongTermCapacity = 200

// MemoryManager manages sessions and memory entries
type MemoryManager struct {
	store    *sqlite.Storage
	capacity int
	locks    *util.KeyedMutex
	logger   *log.Logger
	now      func() time.Time
}

// NewMemoryManager creates a MemoryManager with the given long-term capacity
func NewMemoryManager(store *sqlite.Storage, capacity int) *MemoryManager {
	if capacity < 1 {
		capacity = DefaultLongTermCapacity
	}
	return &MemoryManager{
		store:    store,
		capacity: capacity,
		locks:    util.NewKeyedMutex(),
		logger:   log.WithPrefix("memory"),
		now:      time.Now,
	}
}

// StartSession opens a new active session
func (m *MemoryManager) StartSession(ctx context.Context) (*models.Session, error) {
	sess := &models.Session{
		SessionID: "sess_" + uuid.New().String(),
		State:     models.SessionActive,
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.Sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	m.logger.Debug("session started", "session", sess.SessionID)
	return sess, nil
}

// GetSession returns a session by ID
func (m *MemoryManager) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return m.store.Sessions.Get(ctx, sessionID)
}

// ActiveSession returns the session if it exists and is still active
func (m *MemoryManager) ActiveSession(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := m.store.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != models.SessionActive {
		return nil, fmt.Errorf("%s: %w", sessionID, models.ErrSessionClosed)
	}
	return sess, nil
}

// CloseSession closes a session and expires its short-term entries that were
// not promoted. Closing a closed session is a no-op.
func (m *MemoryManager) CloseSession(ctx context.Context, sessionID string) (int64, error) {
	var expired int64
	err := m.store.InTx(ctx, func(tx *sqlite.Stores) error {
		if _, err := tx.Sessions.Get(ctx, sessionID); err != nil {
			return err
		}
		now := m.now().UTC()
		changed, err := tx.Sessions.Close(ctx, sessionID, now)
		if err != nil {
			return fmt.Errorf("failed to close session: %w", err)
		}
		if !changed {
			return nil
		}
		expired, err = tx.Memories.ExpireSession(ctx, sessionID, now)
		if err != nil {
			return fmt.Errorf("failed to expire session memory: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		metrics.MemoryExpirations.WithLabelValues(models.ExpireSessionClosed).Add(float64(expired))
	}
	m.logger.Info("session closed", "session", sessionID, "expired_entries", expired)
	return expired, nil
}

// Remember stores an entry in the scope it names
func (m *MemoryManager) Remember(ctx context.Context, entry models.MemoryEntry) (*models.MemoryEntry, error) {
	var stored *models.MemoryEntry
	err := m.store.InTx(ctx, func(tx *sqlite.Stores) error {
		var err error
		stored, err = m.rememberTx(ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Pin stores a short-term note that retrieval always includes for the session
func (m *MemoryManager) Pin(ctx context.Context, sessionID, content string) (*models.MemoryEntry, error) {
	return m.Remember(ctx, models.MemoryEntry{
		Scope:      models.ScopeShortTerm,
		Kind:       models.KindPinned,
		SessionID:  sessionID,
		Content:    content,
		Pinned:     true,
		Provenance: models.Provenance{SessionID: sessionID},
	})
}

// rememberTx validates and inserts an entry inside an existing transaction.
// Long-term insertions stamp the use sequence and enforce capacity.
func (m *MemoryManager) rememberTx(ctx context.Context, tx *sqlite.Stores, entry models.MemoryEntry) (*models.MemoryEntry, error) {
	if !entry.Scope.IsValid() {
		return nil, fmt.Errorf("%w: unknown scope %q", models.ErrInvalidInput, entry.Scope)
	}
	if entry.Kind == "" {
		entry.Kind = models.KindNote
	}
	if !entry.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown kind %q", models.ErrInvalidInput, entry.Kind)
	}
	if strings.TrimSpace(entry.Content) == "" {
		return nil, fmt.Errorf("%w: memory content is empty", models.ErrInvalidInput)
	}

	if entry.Scope == models.ScopeShortTerm {
		if entry.SessionID == "" {
			return nil, models.ErrSessionRequired
		}
		sess, err := tx.Sessions.Get(ctx, entry.SessionID)
		if err != nil {
			return nil, err
		}
		if sess.State != models.SessionActive {
			return nil, fmt.Errorf("%s: %w", entry.SessionID, models.ErrSessionClosed)
		}
	}

	now := m.now().UTC()
	if entry.ExpiresAt != nil && !entry.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", models.ErrInvalidInput)
	}
	entry.EntryID = "mem_" + uuid.New().String()
	entry.CreatedAt = now
	entry.ExpiredAt = nil
	entry.ExpireReason = ""
	entry.PromotedAt = nil
	entry.LastUsedSeq = 0

	if entry.Scope == models.ScopeLongTerm {
		seq, err := tx.Memories.NextSeq(ctx)
		if err != nil {
			return nil, err
		}
		entry.LastUsedSeq = seq
	}

	if err := tx.Memories.Insert(ctx, &entry); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	if entry.Scope == models.ScopeLongTerm {
		if err := m.enforceCapacity(ctx, tx, now); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

// Recall returns live entries of a scope matching the filter, most recent first.
// Long-term entries returned count as used for capacity eviction.
func (m *MemoryManager) Recall(ctx context.Context, scope models.MemoryScope, filter models.RecallFilter) ([]models.MemoryEntry, error) {
	var entries []models.MemoryEntry
	err := m.store.InTx(ctx, func(tx *sqlite.Stores) error {
		if err := m.expireDueTx(ctx, tx); err != nil {
			return err
		}
		var err error
		entries, err = m.peekTx(ctx, tx, scope, filter)
		if err != nil {
			return err
		}
		if scope == models.ScopeLongTerm {
			return m.touchTx(ctx, tx, entries)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Peek is Recall without marking long-term entries as used
func (m *MemoryManager) Peek(ctx context.Context, scope models.MemoryScope, filter models.RecallFilter) ([]models.MemoryEntry, error) {
	return m.peekTx(ctx, m.store.Stores, scope, filter)
}

func (m *MemoryManager) peekTx(ctx context.Context, tx *sqlite.Stores, scope models.MemoryScope, filter models.RecallFilter) ([]models.MemoryEntry, error) {
	if !scope.IsValid() {
		return nil, fmt.Errorf("%w: unknown scope %q", models.ErrInvalidInput, scope)
	}

	sessionFilter := ""
	if scope == models.ScopeShortTerm {
		if filter.SessionID == "" {
			return nil, models.ErrSessionRequired
		}
		sessionFilter = filter.SessionID
	}

	live, err := tx.Memories.ListLive(ctx, scope, sessionFilter, m.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list memory: %w", err)
	}

	kinds := make(map[models.MemoryKind]bool, len(filter.Kinds))
	for _, k := range filter.Kinds {
		kinds[k] = true
	}

	var out []models.MemoryEntry
	for _, e := range live {
		if len(kinds) > 0 && !kinds[e.Kind] {
			continue
		}
		if filter.PinnedOnly && !e.Pinned {
			continue
		}
		if filter.Query != "" && filter.MinRelevance > 0 && Relevance(filter.Query, e.Content) < filter.MinRelevance {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// touchTx stamps recalled long-term entries with one fresh use sequence value
func (m *MemoryManager) touchTx(ctx context.Context, tx *sqlite.Stores, entries []models.MemoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	seq, err := tx.Memories.NextSeq(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries))
	for i := range entries {
		if entries[i].Scope != models.ScopeLongTerm {
			continue
		}
		ids = append(ids, entries[i].EntryID)
		entries[i].LastUsedSeq = seq
	}
	return tx.Memories.Touch(ctx, ids, seq)
}

// Promote moves a short-term entry to long-term. Promoting a long-term entry is a no-op.
func (m *MemoryManager) Promote(ctx context.Context, entryID string) (*models.MemoryEntry, error) {
	unlock := m.locks.Lock(entryID)
	defer unlock()

	var result *models.MemoryEntry
	err := m.store.InTx(ctx, func(tx *sqlite.Stores) error {
		entry, err := tx.Memories.Get(ctx, entryID)
		if err != nil {
			return err
		}
		now := m.now().UTC()
		if entry.IsExpired(now) {
			return fmt.Errorf("%s: %w", entryID, models.ErrMemoryExpired)
		}
		if entry.Scope == models.ScopeLongTerm {
			result = entry
			return nil
		}

		seq, err := tx.Memories.NextSeq(ctx)
		if err != nil {
			return err
		}
		changed, err := tx.Memories.Promote(ctx, entryID, now, seq)
		if err != nil {
			return fmt.Errorf("failed to promote memory: %w", err)
		}
		if !changed {
			return fmt.Errorf("%s: %w", entryID, models.ErrMemoryExpired)
		}
		if err := m.enforceCapacity(ctx, tx, now); err != nil {
			return err
		}
		result, err = tx.Memories.Get(ctx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("memory promoted", "entry", entryID)
	return result, nil
}

// Expire soft-deletes an entry. Expiring an expired entry is a no-op.
func (m *MemoryManager) Expire(ctx context.Context, entryID string) (*models.MemoryEntry, error) {
	unlock := m.locks.Lock(entryID)
	defer unlock()

	changed, err := m.store.Memories.Expire(ctx, entryID, models.ExpireExplicit, m.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to expire memory: %w", err)
	}
	entry, err := m.store.Memories.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.MemoryExpirations.WithLabelValues(models.ExpireExplicit).Inc()
	}
	return entry, nil
}

// Get returns an entry including expired ones
func (m *MemoryManager) Get(ctx context.Context, entryID string) (*models.MemoryEntry, error) {
	return m.store.Memories.Get(ctx, entryID)
}

func (m *MemoryManager) enforceCapacity(ctx context.Context, tx *sqlite.Stores, now time.Time) error {
	if err := m.expireDueTx(ctx, tx); err != nil {
		return err
	}
	n, err := tx.Memories.CountLiveLongTerm(ctx, now)
	if err != nil {
		return err
	}
	if n <= m.capacity {
		return nil
	}
	victims, err := tx.Memories.LeastRecentlyUsed(ctx, now, n-m.capacity)
	if err != nil {
		return err
	}
	for _, id := range victims {
		if _, err := tx.Memories.Expire(ctx, id, models.ExpireEvicted, now); err != nil {
			return fmt.Errorf("failed to evict memory %s: %w", id, err)
		}
		metrics.MemoryExpirations.WithLabelValues(models.ExpireEvicted).Inc()
		m.logger.Debug("memory evicted", "entry", id)
	}
	return nil
}

// expireDueTx stamps entries whose expires_at has passed
func (m *MemoryManager) expireDueTx(ctx context.Context, tx *sqlite.Stores) error {
	n, err := tx.Memories.ExpireDue(ctx, m.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to expire due memory: %w", err)
	}
	if n > 0 {
		metrics.MemoryExpirations.WithLabelValues(models.ExpireTTL).Add(float64(n))
		m.logger.Debug("memory ttl expired", "entries", n)
	}
	return nil
}
