package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the publication states of an exam.
type ExamStatus string

const (
	ExamStatusDraft       ExamStatus = "DRAFT"
	ExamStatusPublished   ExamStatus = "PUBLISHED"
	ExamStatusAutoPublish ExamStatus = "AUTO_PUBLISH"
)

// Valid reports whether s is one of the known statuses.
func (s ExamStatus) Valid() bool {
	switch s {
	case ExamStatusDraft, ExamStatusPublished, ExamStatusAutoPublish:
		return true
	}
	return false
}

// MarkingScheme holds the per-question marks. MarksPerWrong is usually <= 0.
type MarkingScheme struct {
	MarksPerCorrect float64 `json:"marks_per_correct"`
	MarksPerWrong   float64 `json:"marks_per_wrong"`
}

// ExamDocument is an exam as stored. Questions are kept as the raw documents
// their producers wrote and are only normalized when the exam is loaded.
type ExamDocument struct {
	ID              uuid.UUID         `json:"id"`
	Title           string            `json:"title"`
	ScheduledAt     *time.Time        `json:"scheduled_at,omitempty"`
	DurationMinutes int               `json:"duration_minutes"`
	Marking         MarkingScheme     `json:"marking"`
	AllowedClasses  []string          `json:"allowed_classes"`
	Status          ExamStatus        `json:"status"`
	Questions       []json.RawMessage `json:"questions"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ExamDefinition is a loaded exam with canonical questions.
type ExamDefinition struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	ScheduledAt     *time.Time    `json:"scheduled_at,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
	Marking         MarkingScheme `json:"marking"`
	AllowedClasses  []string      `json:"allowed_classes"`
	Status          ExamStatus    `json:"status"`
	Questions       []Question    `json:"questions"`
}

// ExamSummary is the list/detail view of an exam without question bodies.
type ExamSummary struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	ScheduledAt     *time.Time    `json:"scheduled_at,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
	Marking         MarkingScheme `json:"marking"`
	AllowedClasses  []string      `json:"allowed_classes"`
	Status          ExamStatus    `json:"status"`
	QuestionCount   int           `json:"question_count"`
}

// Summary strips the question bodies from a document.
func (d *ExamDocument) Summary() ExamSummary {
	return ExamSummary{
		ID:              d.ID,
		Title:           d.Title,
		ScheduledAt:     d.ScheduledAt,
		DurationMinutes: d.DurationMinutes,
		Marking:         d.Marking,
		AllowedClasses:  d.AllowedClasses,
		Status:          d.Status,
		QuestionCount:   len(d.Questions),
	}
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	ScheduledAt     *time.Time `json:"scheduled_at" binding:"omitempty"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	MarksPerCorrect float64    `json:"marks_per_correct" binding:"required,gt=0"`
	MarksPerWrong   float64    `json:"marks_per_wrong" binding:"lte=0"`
	AllowedClasses  []string   `json:"allowed_classes" binding:"omitempty,dive,min=1,max=50"`
	Status          ExamStatus `json:"status" binding:"omitempty,oneof=DRAFT PUBLISHED AUTO_PUBLISH"`
}

// UpdateExamStatusRequest changes the publication state of an exam.
type UpdateExamStatusRequest struct {
	Status      ExamStatus `json:"status" binding:"required,oneof=DRAFT PUBLISHED AUTO_PUBLISH"`
	ScheduledAt *time.Time `json:"scheduled_at" binding:"required_if=Status AUTO_PUBLISH"`
}
