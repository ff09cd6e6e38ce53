package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/model"
)

// ExamBackend is the persistent exam store the cache sits in front of.
type ExamBackend interface {
	GetExamByID(ctx context.Context, id uuid.UUID) (*model.ExamDocument, error)
	ExamExists(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateExamStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error
	SetSchedule(ctx context.Context, id uuid.UUID, status model.ExamStatus, scheduledAt *time.Time) error
	Create(ctx context.Context, d *model.ExamDocument) error
	AppendQuestion(ctx context.Context, id uuid.UUID, question json.RawMessage) (int, error)
	ListExams(ctx context.Context, limit, offset int) ([]model.ExamSummary, int, error)
	ListPublished(ctx context.Context) ([]model.ExamDocument, error)
}

// CachedExamRepository is a read-through Redis cache over an ExamBackend.
// Every write drops the cached document so the next read reloads it.
// Redis failures degrade to direct reads and never fail the call.
type CachedExamRepository struct {
	ExamBackend
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewCachedExamRepository wraps backend with a document cache.
func NewCachedExamRepository(backend ExamBackend, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedExamRepository {
	return &CachedExamRepository{
		ExamBackend: backend,
		rdb:         rdb,
		ttl:         ttl,
		log:         log.With().Str("component", "exam_cache").Logger(),
	}
}

func (r *CachedExamRepository) GetExamByID(ctx context.Context, id uuid.UUID) (*model.ExamDocument, error) {
	key := config.CacheKey.ExamDocumentKey(id.String())

	data, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var d model.ExamDocument
		if jsonErr := json.Unmarshal(data, &d); jsonErr == nil {
			return &d, nil
		}
		r.log.Warn().Str("exam_id", id.String()).Msg("Corrupt cached exam document, reloading")
	case !errors.Is(err, redis.Nil):
		r.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache read failed")
	}

	d, err := r.ExamBackend.GetExamByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, d)
	return d, nil
}

func (r *CachedExamRepository) UpdateExamStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error {
	err := r.ExamBackend.UpdateExamStatus(ctx, id, status)
	r.Invalidate(ctx, id)
	return err
}

func (r *CachedExamRepository) SetSchedule(ctx context.Context, id uuid.UUID, status model.ExamStatus, scheduledAt *time.Time) error {
	err := r.ExamBackend.SetSchedule(ctx, id, status, scheduledAt)
	r.Invalidate(ctx, id)
	return err
}

func (r *CachedExamRepository) AppendQuestion(ctx context.Context, id uuid.UUID, question json.RawMessage) (int, error) {
	n, err := r.ExamBackend.AppendQuestion(ctx, id, question)
	r.Invalidate(ctx, id)
	return n, err
}

// Invalidate drops the cached document for id.
func (r *CachedExamRepository) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := r.rdb.Del(ctx, config.CacheKey.ExamDocumentKey(id.String())).Err(); err != nil {
		r.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache invalidation failed")
	}
}

// Prewarm loads every published exam into the cache.
func (r *CachedExamRepository) Prewarm(ctx context.Context) error {
	exams, err := r.ExamBackend.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}
	if len(exams) == 0 {
		r.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	for i := range exams {
		r.store(ctx, &exams[i])
	}
	r.log.Info().Int("count", len(exams)).Msg("Exam cache prewarmed")
	return nil
}

func (r *CachedExamRepository) store(ctx context.Context, d *model.ExamDocument) {
	data, err := json.Marshal(d)
	if err != nil {
		r.log.Warn().Err(err).Str("exam_id", d.ID.String()).Msg("Marshal exam document failed")
		return
	}
	if err := r.rdb.Set(ctx, config.CacheKey.ExamDocumentKey(d.ID.String()), data, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("exam_id", d.ID.String()).Msg("Exam cache write failed")
	}
}
