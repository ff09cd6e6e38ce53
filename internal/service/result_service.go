package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/model"
)

// ErrNoResult means the student has no stored attempt at the exam.
var ErrNoResult = errors.New("no result for this exam")

// StudentResultView is a student's history and standing for one exam.
type StudentResultView struct {
	ExamID   uuid.UUID              `json:"exam_id"`
	Title    string                 `json:"exam_title"`
	Latest   model.Result           `json:"latest"`
	Attempts []AttemptSummary       `json:"attempts"`
	Subjects []exam.SubjectAccuracy `json:"subjects"`
	Standing exam.Standing          `json:"standing"`
}

// AttemptSummary is one past attempt without its per-question detail.
type AttemptSummary struct {
	ID          uuid.UUID `json:"id"`
	Score       float64   `json:"score"`
	Total       float64   `json:"total"`
	Percentage  float64   `json:"percentage"`
	AutoSubmit  bool      `json:"auto_submitted"`
	TabSwitches int       `json:"tab_switches"`
	AttemptedAt string    `json:"attempted_at"`
}

// ExamResultRow is one line of the admin result sheet.
type ExamResultRow struct {
	ResultID    uuid.UUID `json:"result_id"`
	StudentID   int       `json:"student_id"`
	StudentName string    `json:"student_name"`
	ClassLabel  string    `json:"class_label"`
	Score       float64   `json:"score"`
	Percentage  float64   `json:"percentage"`
	TabSwitches int       `json:"tab_switches"`
	AutoSubmit  bool      `json:"auto_submitted"`
	AttemptedAt string    `json:"attempted_at"`
}

// ExamResultSheet is every attempt at an exam plus the headline numbers.
type ExamResultSheet struct {
	ExamID       uuid.UUID       `json:"exam_id"`
	Title        string          `json:"exam_title"`
	Participants int             `json:"participants"`
	Attempts     int             `json:"attempts"`
	TopScore     float64         `json:"top_score"`
	AverageScore float64         `json:"average_score"`
	Rows         []ExamResultRow `json:"rows"`
}

// ResultService reads stored results.
type ResultService struct {
	exams   exam.ExamStore
	results exam.ResultStore
}

// NewResultService creates a new ResultService.
func NewResultService(exams exam.ExamStore, results exam.ResultStore) *ResultService {
	return &ResultService{exams: exams, results: results}
}

// examTitle resolves the title that legacy rows stored without an exam id are
// matched by. A deleted exam has no title; its results still match by id.
func (s *ResultService) examTitle(ctx context.Context, examID uuid.UUID) (string, error) {
	doc, err := s.exams.GetExamByID(ctx, examID)
	if errors.Is(err, exam.ErrExamNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fetch exam: %w", err)
	}
	return doc.Title, nil
}

// ForStudent returns the student's attempts at the exam with the latest
// attempt's subject breakdown and the student's standing among all takers.
func (s *ResultService) ForStudent(ctx context.Context, studentID int, examID uuid.UUID) (*StudentResultView, error) {
	title, err := s.examTitle(ctx, examID)
	if err != nil {
		return nil, err
	}

	mine, err := s.results.ListResultsByStudentAndExam(ctx, studentID, examID, title)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if len(mine) == 0 {
		return nil, ErrNoResult
	}

	all, err := s.results.ListResultsByExam(ctx, examID, title)
	if err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	standing, _ := exam.ComputeStanding(all, studentID)

	latest := mine[len(mine)-1]
	view := &StudentResultView{
		ExamID:   examID,
		Title:    latest.ExamTitle,
		Latest:   latest,
		Attempts: make([]AttemptSummary, 0, len(mine)),
		Subjects: exam.SubjectBreakdown(latest.Answers),
		Standing: standing,
	}
	for _, r := range mine {
		view.Attempts = append(view.Attempts, AttemptSummary{
			ID:          r.ID,
			Score:       r.Score,
			Total:       r.Total,
			Percentage:  r.Percentage,
			AutoSubmit:  r.AutoSubmit,
			TabSwitches: r.TabSwitches,
			AttemptedAt: r.AttemptedAt.UTC().Format(time.RFC3339),
		})
	}
	return view, nil
}

// ForExam returns the admin result sheet.
func (s *ResultService) ForExam(ctx context.Context, examID uuid.UUID) (*ExamResultSheet, error) {
	title, err := s.examTitle(ctx, examID)
	if err != nil {
		return nil, err
	}

	all, err := s.results.ListResultsByExam(ctx, examID, title)
	if err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}

	sheet := &ExamResultSheet{
		ExamID:   examID,
		Title:    title,
		Attempts: len(all),
		Rows:     make([]ExamResultRow, 0, len(all)),
	}
	if len(all) > 0 {
		st, _ := exam.ComputeStanding(all, all[0].StudentID)
		sheet.Participants = st.Participants
		sheet.TopScore = st.TopScore
		sheet.AverageScore = st.AverageScore
		if sheet.Title == "" {
			sheet.Title = all[0].ExamTitle
		}
	}
	for _, r := range all {
		sheet.Rows = append(sheet.Rows, ExamResultRow{
			ResultID:    r.ID,
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			ClassLabel:  r.ClassLabel,
			Score:       r.Score,
			Percentage:  r.Percentage,
			TabSwitches: r.TabSwitches,
			AutoSubmit:  r.AutoSubmit,
			AttemptedAt: r.AttemptedAt.UTC().Format(time.RFC3339),
		})
	}
	return sheet, nil
}
