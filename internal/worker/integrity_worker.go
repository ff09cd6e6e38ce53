package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/model"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Redis rejects shorter BLPOP timeouts
)

// IntegritySink persists integrity events.
type IntegritySink interface {
	InsertBatch(ctx context.Context, events []model.IntegrityEvent) error
	Insert(ctx context.Context, e model.IntegrityEvent) error
}

// IntegrityWorker drains the integrity queue into PostgreSQL in batches.
type IntegrityWorker struct {
	sink IntegritySink
	rdb  *redis.Client
	log  zerolog.Logger

	batchSize      int
	batchTimeout   time.Duration
	requeueBackoff time.Duration
	redisBackoff   time.Duration
}

func NewIntegrityWorker(sink IntegritySink, rdb *redis.Client, log zerolog.Logger) *IntegrityWorker {
	return &IntegrityWorker{
		sink:           sink,
		rdb:            rdb,
		log:            log.With().Str("component", "integrity_worker").Logger(),
		batchSize:      BatchSize,
		batchTimeout:   BatchTimeout,
		requeueBackoff: 2 * time.Second,
		redisBackoff:   3 * time.Second,
	}
}

// Start blocks until ctx is done, then flushes what it holds.
func (w *IntegrityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("IntegrityWorker started")

	buffer := make([]model.IntegrityEvent, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flush(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		if ctx.Err() != nil {
			w.shutdown(buffer)
			return
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistIntegrityQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Dur("backoff", w.redisBackoff).Msg("Redis error, backing off")
			sleep(ctx, w.redisBackoff)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var event model.IntegrityEvent
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed integrity event")
			continue
		}
		buffer = append(buffer, event)
	}
}

// flush tries COPY first and falls back to row-by-row inserts.
func (w *IntegrityWorker) flush(ctx context.Context, batch []model.IntegrityEvent) {
	err := w.sink.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Integrity batch stored")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Batch insert failed, inserting row by row")

	var retry []model.IntegrityEvent
	for _, e := range batch {
		err := w.sink.Insert(ctx, e)
		switch {
		case err == nil:
		case isDataError(err):
			w.log.Error().Err(err).
				Int("student_id", e.StudentID).
				Str("exam_id", e.ExamID.String()).
				Msg("Dropping integrity event the database rejects")
		default:
			retry = append(retry, e)
		}
	}
	if len(retry) > 0 {
		w.requeue(ctx, retry)
	}
}

func (w *IntegrityWorker) requeue(ctx context.Context, events []model.IntegrityEvent) {
	pipe := w.rdb.Pipeline()
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, config.WorkerKey.PersistIntegrityQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(events)).Msg("Requeue failed, integrity events lost")
		return
	}
	w.log.Info().Int("count", len(events)).Msg("Requeued integrity events")
	sleep(ctx, w.requeueBackoff)
}

func (w *IntegrityWorker) shutdown(buffer []model.IntegrityEvent) {
	w.log.Info().Int("pending", len(buffer)).Msg("IntegrityWorker stopping")
	if len(buffer) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flush(ctx, buffer)
}

// isDataError reports constraint and data-format failures, which a retry
// would not fix.
func isDataError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return false
	}
	class := pgErr.Code[:2]
	return class == "22" || class == "23"
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
