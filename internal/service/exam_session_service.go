package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/metrics"
	"github.com/stemsi/examhall/internal/model"
)

// CompletionChecker reports whether a student already has a stored result.
type CompletionChecker interface {
	HasResult(ctx context.Context, studentID int, examID uuid.UUID) (bool, error)
}

// ExamPreview is what a student sees before opening the exam socket.
type ExamPreview struct {
	Exam      model.ExamSummary `json:"exam"`
	Completed bool              `json:"completed"`
}

// ExamSessionService opens attempts for students.
type ExamSessionService struct {
	loader    *exam.Loader
	submitter exam.Submitter
	completed CompletionChecker
	log       zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(loader *exam.Loader, submitter exam.Submitter, completed CompletionChecker, log zerolog.Logger) *ExamSessionService {
	return &ExamSessionService{
		loader:    loader,
		submitter: submitter,
		completed: completed,
		log:       log.With().Str("component", "exam_session_service").Logger(),
	}
}

// Preview loads the exam for the student and reports whether they already
// submitted it. Loading applies every access rule Open applies.
func (s *ExamSessionService) Preview(ctx context.Context, identity exam.Identity, examID uuid.UUID) (*ExamPreview, error) {
	def, err := s.loader.Load(ctx, examID, identity)
	if err != nil {
		return nil, err
	}

	done, err := s.completed.HasResult(ctx, identity.StudentID, examID)
	if err != nil {
		// Completion is informational; the student may still retake.
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Completion lookup failed")
	}

	return &ExamPreview{Exam: summarize(def), Completed: done}, nil
}

// Open loads the exam and creates a session awaiting confirmation.
func (s *ExamSessionService) Open(ctx context.Context, identity exam.Identity, examID uuid.UUID, opts ...exam.SessionOption) (*exam.Session, error) {
	def, err := s.loader.Load(ctx, examID, identity)
	if err != nil {
		return nil, err
	}

	sess := exam.NewSession(def, identity, s.submitter, opts...)
	metrics.SessionEvents.WithLabelValues(metrics.EventOpened).Inc()
	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", identity.StudentID).
		Str("attempt_id", sess.AttemptID.String()).
		Int("questions", len(def.Questions)).
		Msg("Session opened")
	return sess, nil
}

func summarize(def *model.ExamDefinition) model.ExamSummary {
	return model.ExamSummary{
		ID:              def.ID,
		Title:           def.Title,
		ScheduledAt:     def.ScheduledAt,
		DurationMinutes: def.DurationMinutes,
		Marking:         def.Marking,
		AllowedClasses:  def.AllowedClasses,
		Status:          def.Status,
		QuestionCount:   len(def.Questions),
	}
}
