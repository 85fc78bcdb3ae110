// ABOUTME: MemoryEntry is a single remembered item with a short-term or long-term scope
// ABOUTME: Scope is a tag on one type; promotion and expiry are explicit transitions
package models

import "time"

// MemoryScope tags an entry as session-bound or persistent
type MemoryScope string

const (
	ScopeShortTerm MemoryScope = "short_term"
	ScopeLongTerm  MemoryScope = "long_term"
)

// IsValid reports whether s is a known scope
func (s MemoryScope) IsValid() bool {
	return s == ScopeShortTerm || s == ScopeLongTerm
}

// MemoryKind describes what an entry holds
type MemoryKind string

const (
	KindTurn     MemoryKind = "turn"
	KindPinned   MemoryKind = "pinned"
	KindFeedback MemoryKind = "feedback"
	KindNote     MemoryKind = "note"
)

// IsValid reports whether k is a known kind
func (k MemoryKind) IsValid() bool {
	switch k {
	case KindTurn, KindPinned, KindFeedback, KindNote:
		return true
	}
	return false
}

// Expiry reasons
const (
	ExpireExplicit      = "explicit"
	ExpireSessionClosed = "session_closed"
	ExpireEvicted       = "evicted"
	ExpireTTL           = "ttl"
)

// Provenance records where a memory entry came from
type Provenance struct {
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Query     string `json:"query,omitempty" yaml:"query,omitempty"`
}

// MemoryEntry is one remembered item
type MemoryEntry struct {
	EntryID      string      `json:"entry_id" yaml:"entry_id"`
	Scope        MemoryScope `json:"scope" yaml:"scope"`
	Kind         MemoryKind  `json:"kind" yaml:"kind"`
	SessionID    string      `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Content      string      `json:"content" yaml:"content"`
	FindingID    string      `json:"finding_id,omitempty" yaml:"finding_id,omitempty"`
	Provenance   Provenance  `json:"provenance" yaml:"provenance"`
	Pinned       bool        `json:"pinned" yaml:"pinned"`
	CreatedAt    time.Time   `json:"created_at" yaml:"created_at"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	ExpiredAt    *time.Time  `json:"expired_at,omitempty" yaml:"expired_at,omitempty"`
	ExpireReason string      `json:"expire_reason,omitempty" yaml:"expire_reason,omitempty"`
	PromotedAt   *time.Time  `json:"promoted_at,omitempty" yaml:"promoted_at,omitempty"`
	LastUsedSeq  int64       `json:"last_used_seq" yaml:"last_used_seq"`
}

// IsExpired reports whether the entry is no longer recallable at time now
func (e *MemoryEntry) IsExpired(now time.Time) bool {
	if e.ExpiredAt != nil {
		return true
	}
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Session is a bounded interaction in which an analyst assesses documents
type Session struct {
	SessionID string       `json:"session_id" yaml:"session_id"`
	State     SessionState `json:"state" yaml:"state"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty" yaml:"closed_at,omitempty"`
}

// SessionState is the lifecycle state of a session
type SessionState string

const (
	SessionActive SessionState = "active"
	SessionClosed SessionState = "closed"
)

// RecallFilter narrows a recall
type RecallFilter struct {
	SessionID    string
	Kinds        []MemoryKind
	Query        string
	MinRelevance float64
	PinnedOnly   bool
	Limit        int
}
