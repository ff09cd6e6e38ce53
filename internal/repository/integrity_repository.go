package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examhall/internal/model"
)

var integrityColumns = []string{"exam_id", "student_id", "attempt_id", "kind", "count", "severity", "recorded_at"}

// IntegrityRepository stores anti-cheating signals.
type IntegrityRepository struct {
	pool *pgxpool.Pool
}

// NewIntegrityRepository creates a new IntegrityRepository.
func NewIntegrityRepository(pool *pgxpool.Pool) *IntegrityRepository {
	return &IntegrityRepository{pool: pool}
}

// InsertBatch writes events with COPY. Any bad row fails the whole batch.
func (r *IntegrityRepository) InsertBatch(ctx context.Context, events []model.IntegrityEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{
			e.ExamID, e.StudentID, e.AttemptID, string(e.Kind), e.Count, string(e.Severity), e.RecordedAt,
		})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"integrity_events"},
		integrityColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert writes a single event.
func (r *IntegrityRepository) Insert(ctx context.Context, e model.IntegrityEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO integrity_events (exam_id, student_id, attempt_id, kind, count, severity, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ExamID, e.StudentID, e.AttemptID, e.Kind, e.Count, e.Severity, e.RecordedAt,
	)
	return err
}
