package exam

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/model"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateRunning    State = "RUNNING"
	StateSubmitted  State = "SUBMITTED"
	StateCancelled  State = "CANCELLED"
)

// SubmitMode records who ended the attempt.
type SubmitMode string

const (
	SubmitManual SubmitMode = "manual"
	SubmitAuto   SubmitMode = "auto"
)

// IntegrityWarningThreshold is the count at which a signal becomes a warning.
const IntegrityWarningThreshold = 3

// Submitter stores a scored result and returns its id.
type Submitter interface {
	Submit(ctx context.Context, result *model.Result) (uuid.UUID, error)
}

// IntegritySignal is an anti-cheating observation. It never blocks the attempt.
type IntegritySignal struct {
	Kind     model.IntegrityKind     `json:"kind"`
	Count    int                     `json:"count"`
	Severity model.IntegritySeverity `json:"severity"`
}

// Receipt describes a successfully stored attempt.
type Receipt struct {
	ResultID uuid.UUID     `json:"result_id"`
	Mode     SubmitMode    `json:"mode"`
	Outcome  Outcome       `json:"outcome"`
	Result   *model.Result `json:"-"`
}

// Snapshot is a read-only view of a session for clients and logs.
type Snapshot struct {
	AttemptID       uuid.UUID `json:"attempt_id"`
	ExamID          uuid.UUID `json:"exam_id"`
	State           State     `json:"state"`
	Remaining       int       `json:"remaining_seconds"`
	Total           int       `json:"total_questions"`
	Answered        int       `json:"answered"`
	Unanswered      int       `json:"unanswered"`
	Current         int       `json:"current"`
	Position        int       `json:"position"`
	Subject         string    `json:"subject,omitempty"`
	TabSwitches     int       `json:"tab_switches"`
	BackNavigations int       `json:"back_navigations"`
}

// Session is one student's attempt at one exam. It lives in memory only and
// is not safe for concurrent use; a single goroutine owns it.
type Session struct {
	AttemptID uuid.UUID

	exam      *model.ExamDefinition
	identity  Identity
	submitter Submitter
	rng       Shuffler
	now       func() time.Time

	state     State
	presented []PresentedQuestion
	tracker   *Tracker
	remaining int
	startedAt time.Time

	hidden          bool
	tabSwitches     int
	backNavigations int

	// pending is the scored result of the first submit attempt. Answers are
	// locked from then on so every retry writes the same document.
	pending     *model.Result
	pendingOut  Outcome
	pendingMode SubmitMode
	receipt     *Receipt
}

// SessionOption customises a new Session.
type SessionOption func(*Session)

// WithShuffler sets the random source used when the attempt starts.
func WithShuffler(rng Shuffler) SessionOption {
	return func(s *Session) { s.rng = rng }
}

// WithSessionClock sets the clock used for attempt timestamps.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithAttemptID fixes the attempt id instead of generating one.
func WithAttemptID(id uuid.UUID) SessionOption {
	return func(s *Session) { s.AttemptID = id }
}

// NewSession creates a session awaiting the student's confirmation.
func NewSession(def *model.ExamDefinition, identity Identity, submitter Submitter, opts ...SessionOption) *Session {
	s := &Session{
		AttemptID: uuid.New(),
		exam:      def,
		identity:  identity,
		submitter: submitter,
		now:       time.Now,
		state:     StateNotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State                { return s.state }
func (s *Session) Remaining() int              { return s.remaining }
func (s *Session) Exam() *model.ExamDefinition { return s.exam }
func (s *Session) Identity() Identity          { return s.identity }
func (s *Session) Receipt() *Receipt           { return s.receipt }

// Presented returns the display order fixed at Confirm.
func (s *Session) Presented() []PresentedQuestion {
	return s.presented
}

// Tracker exposes the answer sheet. It is nil before Confirm.
func (s *Session) Tracker() *Tracker {
	return s.tracker
}

// Confirm starts the attempt: the questions are shuffled exactly once and
// the countdown is set to the exam duration.
func (s *Session) Confirm() ([]PresentedQuestion, error) {
	if s.state != StateNotStarted {
		return nil, ErrAlreadyStarted
	}

	s.presented = Present(s.exam.Questions, s.rng)
	s.tracker = NewTracker(s.exam.Questions, Order(s.presented))
	s.remaining = s.exam.DurationMinutes * 60
	s.startedAt = s.now()
	s.state = StateRunning
	return s.presented, nil
}

// Decline cancels a session that never started.
func (s *Session) Decline() error {
	if s.state != StateNotStarted {
		return ErrAlreadyStarted
	}
	s.state = StateCancelled
	return nil
}

// Abandon discards the session without writing anything. It reports whether
// a running attempt was thrown away.
func (s *Session) Abandon() bool {
	wasRunning := s.state == StateRunning
	if s.state == StateNotStarted || s.state == StateRunning {
		s.state = StateCancelled
	}
	return wasRunning
}

// Tick advances the countdown by one second. When it reaches zero the
// attempt is submitted without confirmation. A failed auto-submit is not
// retried by later ticks; the student retries by hand.
func (s *Session) Tick(ctx context.Context) (*Receipt, error) {
	if s.state != StateRunning {
		return nil, ErrNotRunning
	}
	if s.remaining <= 0 {
		return nil, nil
	}

	s.remaining--
	if s.remaining > 0 {
		return nil, nil
	}
	return s.submit(ctx, SubmitAuto)
}

// Submit ends the attempt. Without confirmed, unanswered questions produce
// a *ValidationWarning and nothing is written. Submitting an already
// submitted session returns the original receipt.
func (s *Session) Submit(ctx context.Context, confirmed bool) (*Receipt, error) {
	switch s.state {
	case StateSubmitted:
		return s.receipt, nil
	case StateRunning:
	default:
		return nil, ErrNotRunning
	}

	if !confirmed && s.pending == nil && s.remaining > 0 {
		if n := s.tracker.UnansweredCount(); n > 0 {
			return nil, &ValidationWarning{Unanswered: n}
		}
	}
	return s.submit(ctx, SubmitManual)
}

func (s *Session) submit(ctx context.Context, mode SubmitMode) (*Receipt, error) {
	if s.pending == nil {
		s.pendingOut = Score(s.exam.Questions, s.tracker.Answers(), s.exam.Marking)
		s.pending = s.buildResult(s.pendingOut, mode)
		s.pendingMode = mode
	}

	id, err := s.submitter.Submit(ctx, s.pending)
	if err != nil {
		if errors.Is(err, ErrExamNotFound) {
			s.state = StateCancelled
		}
		return nil, err
	}

	s.pending.ID = id
	s.state = StateSubmitted
	s.receipt = &Receipt{
		ResultID: id,
		Mode:     s.pendingMode,
		Outcome:  s.pendingOut,
		Result:   s.pending,
	}
	return s.receipt, nil
}

func (s *Session) buildResult(out Outcome, mode SubmitMode) *model.Result {
	examID := s.exam.ID
	return &model.Result{
		AttemptID:   s.AttemptID,
		StudentID:   s.identity.StudentID,
		StudentName: s.identity.Name,
		ClassLabel:  s.identity.ClassLabel,
		ExamID:      &examID,
		ExamTitle:   s.exam.Title,
		Score:       out.Score,
		Total:       out.Total,
		Percentage:  out.Percentage,
		TabSwitches: s.tabSwitches,
		AutoSubmit:  mode == SubmitAuto,
		AttemptedAt: s.now().UTC(),
		Answers:     out.Answers,
	}
}

func (s *Session) editable() error {
	if s.state != StateRunning {
		return ErrNotRunning
	}
	if s.pending != nil {
		return ErrAnswersLocked
	}
	if s.remaining <= 0 {
		return ErrTimeUp
	}
	return nil
}

// Select records an answer for the question at its original index.
func (s *Session) Select(index int, option string) error {
	if err := s.editable(); err != nil {
		return err
	}
	return s.tracker.Select(index, option)
}

// Clear removes the answer for the question at its original index.
func (s *Session) Clear(index int) error {
	if err := s.editable(); err != nil {
		return err
	}
	return s.tracker.Clear(index)
}

// Next moves to the next question in the current view. At the end of the
// view it returns the current question with ErrAtEdge.
func (s *Session) Next() (int, error) {
	if s.state != StateRunning {
		return -1, ErrNotRunning
	}
	return navResult(s.tracker.Next())
}

// Previous moves to the previous question in the current view, like Next.
func (s *Session) Previous() (int, error) {
	if s.state != StateRunning {
		return -1, ErrNotRunning
	}
	return navResult(s.tracker.Previous())
}

func navResult(idx int, moved bool) (int, error) {
	switch {
	case moved:
		return idx, nil
	case idx < 0:
		return -1, ErrEmptyView
	default:
		return idx, ErrAtEdge
	}
}

// JumpTo moves to a question in the current view.
func (s *Session) JumpTo(index int) error {
	if s.state != StateRunning {
		return ErrNotRunning
	}
	return s.tracker.JumpTo(index)
}

// FilterBySubject narrows navigation to one subject; "" clears the filter.
func (s *Session) FilterBySubject(subject string) ([]int, error) {
	if s.state != StateRunning {
		return nil, ErrNotRunning
	}
	return s.tracker.FilterBySubject(subject), nil
}

// RecordVisibilityChange counts transitions to hidden while the attempt is
// running. It returns false when nothing was counted.
func (s *Session) RecordVisibilityChange(hidden bool) (IntegritySignal, bool) {
	wasHidden := s.hidden
	s.hidden = hidden
	if s.state != StateRunning || !hidden || wasHidden {
		return IntegritySignal{}, false
	}
	s.tabSwitches++
	return newSignal(model.IntegrityTabHidden, s.tabSwitches), true
}

// RecordBackNavigation counts attempts to leave the exam via history navigation.
func (s *Session) RecordBackNavigation() (IntegritySignal, bool) {
	if s.state != StateRunning {
		return IntegritySignal{}, false
	}
	s.backNavigations++
	return newSignal(model.IntegrityBackNavigated, s.backNavigations), true
}

func newSignal(kind model.IntegrityKind, count int) IntegritySignal {
	sev := model.SeverityInfo
	if count >= IntegrityWarningThreshold {
		sev = model.SeverityWarning
	}
	return IntegritySignal{Kind: kind, Count: count, Severity: sev}
}

// Snapshot returns the client-facing state of the session.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		AttemptID:       s.AttemptID,
		ExamID:          s.exam.ID,
		State:           s.state,
		Remaining:       s.remaining,
		Total:           len(s.exam.Questions),
		Unanswered:      len(s.exam.Questions),
		Current:         -1,
		TabSwitches:     s.tabSwitches,
		BackNavigations: s.backNavigations,
	}
	if s.tracker != nil {
		snap.Answered = s.tracker.AnsweredCount()
		snap.Unanswered = s.tracker.UnansweredCount()
		if cur, ok := s.tracker.Current(); ok {
			snap.Current = cur
		}
		snap.Position = s.tracker.Position()
		snap.Subject = s.tracker.Subject()
	}
	return snap
}
