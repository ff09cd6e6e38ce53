package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

// ExamGetter resolves an exam summary.
type ExamGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*model.ExamSummary, error)
}

// MonitorSnapshotter gathers the current monitor state of an exam.
type MonitorSnapshotter interface {
	Snapshot(ctx context.Context, examID uuid.UUID) (*service.MonitorSnapshot, error)
}

// MonitorHandler streams live exam activity to admins over SSE.
type MonitorHandler struct {
	rdb     *redis.Client
	exams   ExamGetter
	monitor MonitorSnapshotter
	log     zerolog.Logger

	refreshEvery   time.Duration
	keepAliveEvery time.Duration
}

func NewMonitorHandler(rdb *redis.Client, exams ExamGetter, monitor MonitorSnapshotter, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		exams:          exams,
		monitor:        monitor,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		refreshEvery:   refreshInterval,
		keepAliveEvery: keepAliveInterval,
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Sends a snapshot, then forwards joined/started/left/integrity/submitted events as
// they are published, with periodic refreshes and keep-alives.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	exam, err := h.exams.Get(reqCtx, examID)
	if err != nil {
		failWith(c, err)
		return
	}

	// Subscribe before the snapshot so nothing published in between is lost.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
	defer pubsub.Close()
	if _, err := pubsub.Receive(reqCtx); err != nil {
		h.log.Error().Err(err).Msg("Monitor subscribe failed")
		failWith(c, err)
		return
	}
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	snap := h.snapshot(reqCtx, examID)
	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{"exam": exam, "monitor": snap},
	})
	c.Writer.Flush()

	keepAlive := time.NewTicker(h.keepAliveEvery)
	defer keepAlive.Stop()
	refresh := time.NewTicker(h.refreshEvery)
	defer refresh.Stop()

	hasActivity := snap != nil && (len(snap.Live) > 0 || len(snap.SubmittedCounts) > 0)
	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin detached from live monitor")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON.
			c.Writer.Write([]byte("data: " + msg.Payload + "\n\n"))
			c.Writer.Flush()
			hasActivity = true

		case <-refresh.C:
			if !hasActivity {
				continue
			}
			if snap := h.snapshot(reqCtx, examID); snap != nil {
				c.SSEvent("message", gin.H{"type": "refresh", "data": snap})
				c.Writer.Flush()
			}

		case <-keepAlive.C:
			c.Writer.Write([]byte("data: {\"type\":\"ping\"}\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) snapshot(parent context.Context, examID uuid.UUID) *service.MonitorSnapshot {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	snap, err := h.monitor.Snapshot(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Monitor snapshot failed")
		return nil
	}
	return snap
}
