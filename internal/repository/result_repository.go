package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examhall/internal/model"
)

const resultColumns = `id, attempt_id, student_id, student_name, class_label, exam_id, exam_title,
	score, total, percentage, tab_switches, auto_submitted, attempted_at, answers`

// ResultRepository stores submitted attempts. Each attempt is written at most once.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// CreateResult inserts the result and returns its id. A second call for the
// same attempt_id writes nothing and returns the id of the first row.
func (r *ResultRepository) CreateResult(ctx context.Context, res *model.Result) (uuid.UUID, error) {
	answers := res.Answers
	if answers == nil {
		answers = []model.ResultAnswer{}
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO results (attempt_id, student_id, student_name, class_label, exam_id, exam_title,
		                      score, total, percentage, tab_switches, auto_submitted, attempted_at, answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (attempt_id) DO NOTHING
		 RETURNING id`,
		res.AttemptID, res.StudentID, res.StudentName, res.ClassLabel, res.ExamID, res.ExamTitle,
		res.Score, res.Total, res.Percentage, res.TabSwitches, res.AutoSubmit, res.AttemptedAt, answers,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	// Attempt already stored by an earlier submit.
	err = r.pool.QueryRow(ctx,
		`SELECT id FROM results WHERE attempt_id = $1`, res.AttemptID,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup existing result: %w", err)
	}
	return id, nil
}

// ListResultsByStudentAndExam returns a student's attempts at an exam, oldest first.
// Legacy rows stored without an exam id match by a non-empty title.
func (r *ResultRepository) ListResultsByStudentAndExam(ctx context.Context, studentID int, examID uuid.UUID, examTitle string) ([]model.Result, error) {
	return r.list(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE student_id = $1 AND (exam_id = $2 OR (exam_id IS NULL AND $3 <> '' AND exam_title = $3))
		 ORDER BY attempted_at`,
		studentID, examID, examTitle)
}

// ListResultsByExam returns every attempt at an exam, oldest first.
func (r *ResultRepository) ListResultsByExam(ctx context.Context, examID uuid.UUID, examTitle string) ([]model.Result, error) {
	return r.list(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE exam_id = $1 OR (exam_id IS NULL AND $2 <> '' AND exam_title = $2)
		 ORDER BY attempted_at`,
		examID, examTitle)
}

// HasResult reports whether the student already submitted this exam.
func (r *ResultRepository) HasResult(ctx context.Context, studentID int, examID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE student_id = $1 AND exam_id = $2)`,
		studentID, examID,
	).Scan(&exists)
	return exists, err
}

func (r *ResultRepository) list(ctx context.Context, query string, args ...any) ([]model.Result, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ID, &res.AttemptID, &res.StudentID, &res.StudentName, &res.ClassLabel,
			&res.ExamID, &res.ExamTitle, &res.Score, &res.Total, &res.Percentage,
			&res.TabSwitches, &res.AutoSubmit, &res.AttemptedAt, &res.Answers); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
