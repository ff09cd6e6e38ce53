package exam

import (
	"errors"
	"fmt"
)

var (
	// ErrExamNotFound is terminal: the exam id does not resolve (at load or at submit).
	ErrExamNotFound = errors.New("exam not found")

	ErrIdentityRequired   = errors.New("student identity required")
	ErrNotInAudience      = errors.New("exam is not open to this class")
	ErrExamNotPublished   = errors.New("exam is not published")
	ErrMalformedQuestion  = errors.New("malformed question document")
	ErrSessionDiscarded   = errors.New("session discarded before load completed")
	ErrAlreadyStarted     = errors.New("session already started or closed")
	ErrNotRunning         = errors.New("session is not running")
	ErrTimeUp             = errors.New("time is up")
	ErrAnswersLocked      = errors.New("answers are locked for submission")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrNotInView          = errors.New("question is not in the current view")
	ErrAtEdge             = errors.New("no further question in that direction")
	ErrEmptyView          = errors.New("no questions match the current filter")
)

// ValidationWarning is returned by an unconfirmed submit while questions are
// still unanswered. The client resubmits with confirmation to proceed.
type ValidationWarning struct {
	Unanswered int
}

func (w *ValidationWarning) Error() string {
	return fmt.Sprintf("%d question(s) unanswered, confirmation required", w.Unanswered)
}

// PersistenceError wraps a failed result write. The session stays running
// and the same scored result can be submitted again.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist result: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
