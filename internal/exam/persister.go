package exam

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/model"
)

// ResultStore is the write-once result collection.
//
// CreateResult is an upsert keyed by AttemptID: writing the same attempt
// twice returns the id of the first write. The list queries match on exam
// id and fall back to the denormalized title for rows stored without one.
type ResultStore interface {
	CreateResult(ctx context.Context, result *model.Result) (uuid.UUID, error)
	ListResultsByStudentAndExam(ctx context.Context, studentID int, examID uuid.UUID, examTitle string) ([]model.Result, error)
	ListResultsByExam(ctx context.Context, examID uuid.UUID, examTitle string) ([]model.Result, error)
}

// ExamChecker confirms an exam still exists at submit time.
type ExamChecker interface {
	ExamExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// SubmitObserver is told about every stored result.
type SubmitObserver interface {
	ResultStored(ctx context.Context, result *model.Result)
}

// Persister writes scored results. It satisfies Submitter.
type Persister struct {
	results   ResultStore
	exams     ExamChecker
	observers []SubmitObserver
	log       zerolog.Logger
}

// NewPersister creates a Persister.
func NewPersister(results ResultStore, exams ExamChecker, log zerolog.Logger, observers ...SubmitObserver) *Persister {
	return &Persister{
		results:   results,
		exams:     exams,
		observers: observers,
		log:       log.With().Str("component", "result_persister").Logger(),
	}
}

// Submit stores result once. A vanished exam yields ErrExamNotFound; any
// other failure is a *PersistenceError.
func (p *Persister) Submit(ctx context.Context, result *model.Result) (uuid.UUID, error) {
	if result.ExamID == nil {
		return uuid.Nil, &PersistenceError{Err: errors.New("result has no exam id")}
	}

	exists, err := p.exams.ExamExists(ctx, *result.ExamID)
	if err != nil {
		return uuid.Nil, &PersistenceError{Err: err}
	}
	if !exists {
		return uuid.Nil, ErrExamNotFound
	}

	id, err := p.results.CreateResult(ctx, result)
	if err != nil {
		p.log.Error().Err(err).
			Str("attempt_id", result.AttemptID.String()).
			Int("student_id", result.StudentID).
			Msg("Result write failed")
		return uuid.Nil, &PersistenceError{Err: err}
	}

	p.log.Info().
		Str("result_id", id.String()).
		Str("attempt_id", result.AttemptID.String()).
		Int("student_id", result.StudentID).
		Float64("score", result.Score).
		Float64("percentage", result.Percentage).
		Msg("Result stored")

	stored := *result
	stored.ID = id
	for _, o := range p.observers {
		o.ResultStored(ctx, &stored)
	}
	return id, nil
}
