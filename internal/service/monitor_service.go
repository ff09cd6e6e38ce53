package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/metrics"
	"github.com/stemsi/examhall/internal/model"
)

// Monitor event types published on the exam's Pub/Sub channel.
const (
	MonitorJoined    = "joined"
	MonitorStarted   = "started"
	MonitorLeft      = "left"
	MonitorIntegrity = "integrity"
	MonitorSubmitted = "submitted"
)

// MonitorEvent is one live update for the admin monitor.
type MonitorEvent struct {
	Type        string                  `json:"type"`
	ExamID      uuid.UUID               `json:"exam_id"`
	StudentID   int                     `json:"student_id"`
	StudentName string                  `json:"student_name,omitempty"`
	ClassLabel  string                  `json:"class_label,omitempty"`
	AttemptID   uuid.UUID               `json:"attempt_id"`
	Kind        model.IntegrityKind     `json:"kind,omitempty"`
	Count       int                     `json:"count,omitempty"`
	Severity    model.IntegritySeverity `json:"severity,omitempty"`
	Score       *float64                `json:"score,omitempty"`
	Percentage  *float64                `json:"percentage,omitempty"`
	AutoSubmit  bool                    `json:"auto_submitted,omitempty"`
	At          time.Time               `json:"at"`
}

// MonitorStore tracks who is live and counts persisted activity.
type MonitorStore interface {
	MarkLive(ctx context.Context, examID uuid.UUID, studentID int, attemptID uuid.UUID) error
	ClearLive(ctx context.Context, examID uuid.UUID, studentID int) error
	LiveStudentIDs(ctx context.Context, examID uuid.UUID) ([]int, error)
	SubmittedCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
	IntegrityCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
}

// MonitorSnapshot is the state an admin sees when attaching to the monitor.
type MonitorSnapshot struct {
	Live            []int         `json:"live"`
	SubmittedCounts map[int]int64 `json:"submitted_counts"`
	IntegrityCounts map[int]int64 `json:"integrity_counts"`
	TotalSignals    int64         `json:"total_signals"`
}

// MonitorService publishes session activity for the live monitor and
// queues integrity signals for persistence.
type MonitorService struct {
	store MonitorStore
	rdb   *redis.Client
	log   zerolog.Logger
	now   func() time.Time
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(store MonitorStore, rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "monitor_service").Logger(),
		now:   time.Now,
	}
}

// Snapshot gathers live, submitted and integrity counts concurrently.
// Live and submitted counts are required; integrity counts are best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		live                    []int
		submitted, signals      map[int]int64
		liveErr, subErr, sigErr error
		wg                      sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		live, liveErr = s.store.LiveStudentIDs(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		submitted, subErr = s.store.SubmittedCounts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		signals, sigErr = s.store.IntegrityCounts(ctx, examID)
	}()
	wg.Wait()

	if liveErr != nil {
		return nil, liveErr
	}
	if subErr != nil {
		return nil, subErr
	}

	snap := &MonitorSnapshot{
		Live:            live,
		SubmittedCounts: submitted,
		IntegrityCounts: map[int]int64{},
	}
	if snap.Live == nil {
		snap.Live = []int{}
	}
	if snap.SubmittedCounts == nil {
		snap.SubmittedCounts = map[int]int64{}
	}
	if sigErr != nil {
		s.log.Warn().Err(sigErr).Str("exam_id", examID.String()).Msg("Integrity counts unavailable")
	} else if signals != nil {
		snap.IntegrityCounts = signals
		for _, n := range signals {
			snap.TotalSignals += n
		}
	}
	return snap, nil
}

// Joined marks the student live and announces it.
func (s *MonitorService) Joined(ctx context.Context, sess *exam.Session) {
	id := sess.Identity()
	examID := sess.Exam().ID
	if err := s.store.MarkLive(ctx, examID, id.StudentID, sess.AttemptID); err != nil {
		s.log.Warn().Err(err).Int("student_id", id.StudentID).Msg("Mark live failed")
	}
	metrics.LiveSessions.Inc()
	s.publish(ctx, MonitorEvent{
		Type:        MonitorJoined,
		ExamID:      examID,
		StudentID:   id.StudentID,
		StudentName: id.Name,
		ClassLabel:  id.ClassLabel,
		AttemptID:   sess.AttemptID,
	})
}

// Started announces that the student confirmed and the clock is running.
func (s *MonitorService) Started(ctx context.Context, sess *exam.Session) {
	id := sess.Identity()
	s.publish(ctx, MonitorEvent{
		Type:        MonitorStarted,
		ExamID:      sess.Exam().ID,
		StudentID:   id.StudentID,
		StudentName: id.Name,
		ClassLabel:  id.ClassLabel,
		AttemptID:   sess.AttemptID,
	})
}

// Left clears the live marker and announces the disconnect.
func (s *MonitorService) Left(ctx context.Context, sess *exam.Session) {
	id := sess.Identity()
	examID := sess.Exam().ID
	if err := s.store.ClearLive(ctx, examID, id.StudentID); err != nil {
		s.log.Warn().Err(err).Int("student_id", id.StudentID).Msg("Clear live failed")
	}
	metrics.LiveSessions.Dec()
	s.publish(ctx, MonitorEvent{
		Type:      MonitorLeft,
		ExamID:    examID,
		StudentID: id.StudentID,
		AttemptID: sess.AttemptID,
	})
}

// Integrity announces a signal and queues it for the integrity worker.
func (s *MonitorService) Integrity(ctx context.Context, sess *exam.Session, sig exam.IntegritySignal) {
	id := sess.Identity()
	at := s.now().UTC()
	metrics.IntegritySignals.WithLabelValues(string(sig.Kind)).Inc()

	event := model.IntegrityEvent{
		ExamID:     sess.Exam().ID,
		StudentID:  id.StudentID,
		AttemptID:  sess.AttemptID,
		Kind:       sig.Kind,
		Count:      sig.Count,
		Severity:   sig.Severity,
		RecordedAt: at,
	}
	data, err := json.Marshal(event)
	if err == nil {
		err = s.rdb.RPush(ctx, config.WorkerKey.PersistIntegrityQueue, data).Err()
	}
	if err != nil {
		s.log.Error().Err(err).Int("student_id", id.StudentID).Msg("Queue integrity event failed")
	}

	s.publish(ctx, MonitorEvent{
		Type:        MonitorIntegrity,
		ExamID:      event.ExamID,
		StudentID:   id.StudentID,
		StudentName: id.Name,
		AttemptID:   sess.AttemptID,
		Kind:        sig.Kind,
		Count:       sig.Count,
		Severity:    sig.Severity,
		At:          at,
	})
}

// ResultStored implements exam.SubmitObserver.
func (s *MonitorService) ResultStored(ctx context.Context, r *model.Result) {
	if r.ExamID == nil {
		return
	}
	score, pct := r.Score, r.Percentage
	s.publish(ctx, MonitorEvent{
		Type:        MonitorSubmitted,
		ExamID:      *r.ExamID,
		StudentID:   r.StudentID,
		StudentName: r.StudentName,
		ClassLabel:  r.ClassLabel,
		AttemptID:   r.AttemptID,
		Score:       &score,
		Percentage:  &pct,
		AutoSubmit:  r.AutoSubmit,
	})
}

func (s *MonitorService) publish(ctx context.Context, ev MonitorEvent) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(ev.ExamID.String()), data).Err(); err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Msg("Publish monitor event failed")
	}
}
