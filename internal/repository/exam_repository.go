package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/model"
)

const examColumns = `id, title, scheduled_at, duration_minutes, marks_per_correct, marks_per_wrong,
	allowed_classes, status, questions, created_at, updated_at`

// ExamRepository handles exam data access. Questions live in a jsonb array
// on the exam row exactly as their producers wrote them.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.ExamDocument, error) {
	d := &model.ExamDocument{}
	err := row.Scan(&d.ID, &d.Title, &d.ScheduledAt, &d.DurationMinutes,
		&d.Marking.MarksPerCorrect, &d.Marking.MarksPerWrong,
		&d.AllowedClasses, &d.Status, &d.Questions, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetExamByID retrieves an exam document by its UUID.
func (r *ExamRepository) GetExamByID(ctx context.Context, id uuid.UUID) (*model.ExamDocument, error) {
	d, err := scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, exam.ErrExamNotFound
	}
	return d, err
}

// ExamExists reports whether the exam row is still present.
func (r *ExamRepository) ExamExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exams WHERE id = $1)`, id,
	).Scan(&exists)
	return exists, err
}

// UpdateExamStatus changes only the status column.
func (r *ExamRepository) UpdateExamStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrExamNotFound
	}
	return nil
}

// SetSchedule changes status and schedule together, as the admin panel does.
func (r *ExamRepository) SetSchedule(ctx context.Context, id uuid.UUID, status model.ExamStatus, scheduledAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, scheduled_at = $2, updated_at = NOW() WHERE id = $3`,
		status, scheduledAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrExamNotFound
	}
	return nil
}

// Create inserts a new exam with an empty question list.
func (r *ExamRepository) Create(ctx context.Context, d *model.ExamDocument) error {
	if d.AllowedClasses == nil {
		d.AllowedClasses = []string{}
	}
	d.Questions = []json.RawMessage{}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, scheduled_at, duration_minutes, marks_per_correct, marks_per_wrong, allowed_classes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		d.Title, d.ScheduledAt, d.DurationMinutes, d.Marking.MarksPerCorrect,
		d.Marking.MarksPerWrong, d.AllowedClasses, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// AppendQuestion adds one raw question document and returns the new question count.
func (r *ExamRepository) AppendQuestion(ctx context.Context, id uuid.UUID, question json.RawMessage) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE exams
		 SET questions = questions || jsonb_build_array($1::jsonb), updated_at = NOW()
		 WHERE id = $2
		 RETURNING jsonb_array_length(questions)`,
		string(question), id,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, exam.ErrExamNotFound
	}
	return count, err
}

// ListExams returns exam summaries newest first, with the total row count.
func (r *ExamRepository) ListExams(ctx context.Context, limit, offset int) ([]model.ExamSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, scheduled_at, duration_minutes, marks_per_correct, marks_per_wrong,
		        allowed_classes, status, jsonb_array_length(questions)
		 FROM exams
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.ExamSummary
	for rows.Next() {
		var e model.ExamSummary
		if err := rows.Scan(&e.ID, &e.Title, &e.ScheduledAt, &e.DurationMinutes,
			&e.Marking.MarksPerCorrect, &e.Marking.MarksPerWrong,
			&e.AllowedClasses, &e.Status, &e.QuestionCount); err != nil {
			return nil, 0, fmt.Errorf("scan exam: %w", err)
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListPublished returns every PUBLISHED exam. Used to prewarm the document cache on startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.ExamDocument, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = $1 ORDER BY created_at DESC`,
		model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.ExamDocument
	for rows.Next() {
		d, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *d)
	}
	return exams, rows.Err()
}
