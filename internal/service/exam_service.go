package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/response"
)

// Domain errors for exam administration.
var (
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrScheduleRequired = errors.New("AUTO_PUBLISH requires scheduled_at")
)

// ExamAdminStore is the exam persistence the admin panel needs.
type ExamAdminStore interface {
	GetExamByID(ctx context.Context, id uuid.UUID) (*model.ExamDocument, error)
	Create(ctx context.Context, d *model.ExamDocument) error
	SetSchedule(ctx context.Context, id uuid.UUID, status model.ExamStatus, scheduledAt *time.Time) error
	ListExams(ctx context.Context, limit, offset int) ([]model.ExamSummary, int, error)
}

// ExamService handles exam authoring and publication.
type ExamService struct {
	store ExamAdminStore
	log   zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(store ExamAdminStore, log zerolog.Logger) *ExamService {
	return &ExamService{
		store: store,
		log:   log.With().Str("component", "exam_service").Logger(),
	}
}

// Create inserts a new exam. Status defaults to DRAFT.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.ExamSummary, error) {
	status := req.Status
	if status == "" {
		status = model.ExamStatusDraft
	}
	if status == model.ExamStatusAutoPublish && req.ScheduledAt == nil {
		return nil, ErrScheduleRequired
	}
	// Nothing to publish yet.
	if status == model.ExamStatusPublished {
		return nil, ErrNoQuestions
	}

	doc := &model.ExamDocument{
		Title:           req.Title,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Marking: model.MarkingScheme{
			MarksPerCorrect: req.MarksPerCorrect,
			MarksPerWrong:   req.MarksPerWrong,
		},
		AllowedClasses: req.AllowedClasses,
		Status:         status,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Str("exam_id", doc.ID.String()).Str("status", string(status)).Msg("Exam created")
	sum := doc.Summary()
	return &sum, nil
}

// Get returns an exam summary.
func (s *ExamService) Get(ctx context.Context, id uuid.UUID) (*model.ExamSummary, error) {
	doc, err := s.store.GetExamByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := doc.Summary()
	return &sum, nil
}

// List returns one page of exam summaries, newest first.
func (s *ExamService) List(ctx context.Context, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	page, perPage, limit, offset := response.PageBounds(page, perPage, 100)

	exams, total, err := s.store.ListExams(ctx, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.ExamSummary{}
	}
	return exams, response.NewPagination(page, perPage, total), nil
}

// UpdateStatus moves an exam between DRAFT, PUBLISHED and AUTO_PUBLISH.
// An exam with no questions cannot be made visible to students.
func (s *ExamService) UpdateStatus(ctx context.Context, id uuid.UUID, req *model.UpdateExamStatusRequest) error {
	doc, err := s.store.GetExamByID(ctx, id)
	if err != nil {
		return err
	}

	scheduledAt := doc.ScheduledAt
	switch req.Status {
	case model.ExamStatusAutoPublish:
		if req.ScheduledAt == nil {
			return ErrScheduleRequired
		}
		scheduledAt = req.ScheduledAt
		fallthrough
	case model.ExamStatusPublished:
		if len(doc.Questions) == 0 {
			return ErrNoQuestions
		}
	}

	if err := s.store.SetSchedule(ctx, id, req.Status, scheduledAt); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().
		Str("exam_id", id.String()).
		Str("from", string(doc.Status)).
		Str("to", string(req.Status)).
		Msg("Exam status changed")
	return nil
}
