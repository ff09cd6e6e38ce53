package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionDecline    Action = "decline"
	ActionSelect     Action = "select"
	ActionClear      Action = "clear"
	ActionNext       Action = "next"
	ActionPrevious   Action = "previous"
	ActionJump       Action = "jump"
	ActionFilter     Action = "filter"
	ActionVisibility Action = "visibility"
	ActionBackNav    Action = "back_nav"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SelectRequest records an answer for the question at its original index.
type SelectRequest struct {
	Index  *int   `json:"index" binding:"required,min=0"`
	Option string `json:"option" binding:"max=1000"`
}

// IndexRequest carries an original question index for clear and jump.
type IndexRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// FilterRequest narrows navigation to one subject; empty clears the filter.
type FilterRequest struct {
	Subject string `json:"subject" binding:"max=100"`
}

// VisibilityRequest reports the page becoming hidden or visible.
type VisibilityRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// SubmitRequest finishes the attempt. Confirm acknowledges unanswered questions.
type SubmitRequest struct {
	Confirm bool `json:"confirm"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventConfirmRequired Event = "confirm_required"
	EventStarted         Event = "started"
	EventTick            Event = "tick"
	EventNavigated       Event = "navigated"
	EventSaved           Event = "saved"
	EventIntegrity       Event = "integrity"
	EventWarning         Event = "warning"
	EventGraded          Event = "graded"
	EventCancelled       Event = "cancelled"
	EventError           Event = "error"
	EventPong            Event = "pong"
)

// ConfirmRequiredResponse is sent once the exam is loaded and waits for the
// student to start.
type ConfirmRequiredResponse struct {
	Event           Event     `json:"event"`
	AttemptID       uuid.UUID `json:"attempt_id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionCount   int       `json:"question_count"`
	MarksPerCorrect float64   `json:"marks_per_correct"`
	MarksPerWrong   float64   `json:"marks_per_wrong"`
	Subjects        []string  `json:"subjects"`
}

// StartedQuestion is a question in display order, keyed by its original index.
type StartedQuestion struct {
	Index    int                   `json:"index"`
	Position int                   `json:"position"`
	Question model.StudentQuestion `json:"question"`
}

type StartedResponse struct {
	Event     Event             `json:"event"`
	Remaining int               `json:"remaining_seconds"`
	Questions []StartedQuestion `json:"questions"`
	Session   exam.Snapshot     `json:"session"`
}

type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining_seconds"`
}

type NavigatedResponse struct {
	Event   Event `json:"event"`
	Current int   `json:"current"`
	View    []int `json:"view,omitempty"`
	AtEdge  bool  `json:"at_edge,omitempty"`
}

type SavedResponse struct {
	Event      Event `json:"event"`
	Index      int   `json:"index"`
	Answered   int   `json:"answered"`
	Unanswered int   `json:"unanswered"`
}

type IntegrityResponse struct {
	Event  Event                `json:"event"`
	Signal exam.IntegritySignal `json:"signal"`
}

// WarningResponse asks the student to confirm a submit with blanks left.
type WarningResponse struct {
	Event      Event `json:"event"`
	Unanswered int   `json:"unanswered"`
}

type GradedResponse struct {
	Event    Event           `json:"event"`
	ResultID uuid.UUID       `json:"result_id"`
	Mode     exam.SubmitMode `json:"mode"`
	Outcome  exam.Outcome    `json:"outcome"`
}

type CancelledResponse struct {
	Event Event `json:"event"`
}

// ErrorResponse carries a machine code and a readable message. Retryable
// errors leave the session usable.
type ErrorResponse struct {
	Event     Event  `json:"event"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
