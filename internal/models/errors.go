// ABOUTME: Sentinel errors shared by storage, core and adapters
// ABOUTME: Callers wrap with %w and match with errors.Is
package models

import "errors"

var (
	// ErrMalformedDocument means the document could not be segmented; nothing was stored.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrEmptyIndex means no chunk embeddings exist for the requested model.
	ErrEmptyIndex = errors.New("empty index")
	// ErrInvalidTransition means feedback targeted a finding in a terminal state.
	ErrInvalidTransition = errors.New("invalid finding transition")
	// ErrAssessmentUnavailable means the reasoning step failed, timed out, or returned unusable output.
	ErrAssessmentUnavailable = errors.New("assessment unavailable")

	ErrNotFound         = errors.New("not found")
	ErrDocumentNotFound = notFound("document not found")
	ErrSessionNotFound  = notFound("session not found")
	ErrFindingNotFound  = notFound("finding not found")
	ErrMemoryNotFound   = notFound("memory entry not found")

	ErrSessionClosed   = errors.New("session closed")
	ErrSessionRequired = errors.New("short-term memory requires a session")
	ErrMemoryExpired   = errors.New("memory entry expired")
	ErrInvalidVerdict  = errors.New("invalid verdict")
	ErrInvalidInput    = errors.New("invalid input")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

// Is lets every specific not-found error match ErrNotFound.
func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
