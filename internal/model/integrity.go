package model

import (
	"time"

	"github.com/google/uuid"
)

// IntegrityKind names the anti-cheating signal source.
type IntegrityKind string

const (
	IntegrityTabHidden     IntegrityKind = "TAB_HIDDEN"
	IntegrityBackNavigated IntegrityKind = "BACK_NAVIGATION"
)

// IntegritySeverity grades a signal.
type IntegritySeverity string

const (
	SeverityInfo    IntegritySeverity = "INFO"
	SeverityWarning IntegritySeverity = "WARNING"
)

// IntegrityEvent is a persisted anti-cheating signal.
type IntegrityEvent struct {
	ExamID     uuid.UUID         `json:"exam_id"`
	StudentID  int               `json:"student_id"`
	AttemptID  uuid.UUID         `json:"attempt_id"`
	Kind       IntegrityKind     `json:"kind"`
	Count      int               `json:"count"`
	Severity   IntegritySeverity `json:"severity"`
	RecordedAt time.Time         `json:"recorded_at"`
}
