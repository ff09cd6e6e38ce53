package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examhall/internal/config"
)

// MonitorRepository provides data for the live exam monitor.
// Sockets currently in an exam are tracked in Redis; everything else comes from PostgreSQL.
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// MarkLive records that a student has an exam socket open for the given attempt.
func (r *MonitorRepository) MarkLive(ctx context.Context, examID uuid.UUID, studentID int, attemptID uuid.UUID) error {
	return r.rdb.HSet(ctx, config.CacheKey.ExamLiveSessionsKey(examID.String()),
		strconv.Itoa(studentID), attemptID.String()).Err()
}

// ClearLive removes the student's live marker.
func (r *MonitorRepository) ClearLive(ctx context.Context, examID uuid.UUID, studentID int) error {
	return r.rdb.HDel(ctx, config.CacheKey.ExamLiveSessionsKey(examID.String()),
		strconv.Itoa(studentID)).Err()
}

// LiveStudentIDs returns the students currently connected to the exam.
func (r *MonitorRepository) LiveStudentIDs(ctx context.Context, examID uuid.UUID) ([]int, error) {
	keys, err := r.rdb.HKeys(ctx, config.CacheKey.ExamLiveSessionsKey(examID.String())).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SubmittedCounts returns the number of stored attempts per student.
func (r *MonitorRepository) SubmittedCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	return r.countByStudent(ctx,
		`SELECT student_id, COUNT(*) FROM results WHERE exam_id = $1 GROUP BY student_id`, examID)
}

// IntegrityCounts returns the number of integrity events recorded per student.
func (r *MonitorRepository) IntegrityCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	return r.countByStudent(ctx,
		`SELECT student_id, COUNT(*) FROM integrity_events WHERE exam_id = $1 GROUP BY student_id`, examID)
}

func (r *MonitorRepository) countByStudent(ctx context.Context, query string, examID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx, query, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var sid int
		var n int64
		if err := rows.Scan(&sid, &n); err != nil {
			return nil, err
		}
		counts[sid] = n
	}
	return counts, rows.Err()
}
