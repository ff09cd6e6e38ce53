package model

import (
	"time"

	"github.com/google/uuid"
)

// Result is the immutable record of one submitted attempt.
// len(Answers) always equals the exam's question count at submission time.
type Result struct {
	ID          uuid.UUID      `json:"id"`
	AttemptID   uuid.UUID      `json:"attempt_id"`
	StudentID   int            `json:"student_id"`
	StudentName string         `json:"student_name,omitempty"`
	ClassLabel  string         `json:"class_label,omitempty"`
	ExamID      *uuid.UUID     `json:"exam_id,omitempty"`
	ExamTitle   string         `json:"exam_title"`
	Score       float64        `json:"score"`
	Total       float64        `json:"total"`
	Percentage  float64        `json:"percentage"`
	TabSwitches int            `json:"tab_switches"`
	AutoSubmit  bool           `json:"auto_submitted"`
	AttemptedAt time.Time      `json:"attempted_at"`
	Answers     []ResultAnswer `json:"answers"`
}

// ResultAnswer is one question's outcome. Selected is nil when unattempted.
type ResultAnswer struct {
	QuestionText  string  `json:"question_text"`
	ImageRef      string  `json:"image_ref,omitempty"`
	Selected      *string `json:"selected"`
	CorrectAnswer string  `json:"correct_answer"`
	IsCorrect     bool    `json:"is_correct"`
	Subject       string  `json:"subject,omitempty"`
	Topic         string  `json:"topic,omitempty"`
}

// Attempted reports whether the student picked an option.
func (a ResultAnswer) Attempted() bool {
	return a.Selected != nil
}
