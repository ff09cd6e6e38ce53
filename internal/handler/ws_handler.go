package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/metrics"
	"github.com/stemsi/examhall/internal/middleware"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/response"
	"github.com/stemsi/examhall/internal/validator"
	ws "github.com/stemsi/examhall/internal/websocket"
	"golang.org/x/time/rate"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// SessionOpener loads an exam for a student and returns a fresh session.
type SessionOpener interface {
	Open(ctx context.Context, identity exam.Identity, examID uuid.UUID, opts ...exam.SessionOption) (*exam.Session, error)
}

// SessionMonitor receives live session activity.
type SessionMonitor interface {
	Joined(ctx context.Context, sess *exam.Session)
	Started(ctx context.Context, sess *exam.Session)
	Left(ctx context.Context, sess *exam.Session)
	Integrity(ctx context.Context, sess *exam.Session, sig exam.IntegritySignal)
}

// SocketOptions tunes the exam socket.
type SocketOptions struct {
	AllowedOrigins []string
	RatePerSecond  float64
	RateBurst      int
	// TickInterval is one exam second. Zero means time.Second.
	TickInterval time.Duration
}

// WSHandler runs one exam session per WebSocket connection.
type WSHandler struct {
	sessions SessionOpener
	monitor  SessionMonitor
	log      zerolog.Logger
	upgrader websocket.Upgrader
	opts     SocketOptions
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionOpener, monitor SessionMonitor, log zerolog.Logger, opts SocketOptions) *WSHandler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &WSHandler{
		sessions: sessions,
		monitor:  monitor,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(opts.AllowedOrigins),
		opts:     opts,
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Loads the exam, asks for confirmation and then drives the attempt: answers,
// navigation, integrity signals, the countdown and submission.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	identity := middleware.GetClaims(c).Identity()
	if !identity.Present() {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MaxMessageBytes)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// loadCtx ends when the client goes away, so a slow load is discarded.
	loadCtx, loadCancel := context.WithCancel(ctx)
	defer loadCancel()

	frames := make(chan []byte, 16)
	go readLoop(ctx, loadCancel, conn, frames, h.log)

	wsLog := h.log.With().
		Int("student_id", identity.StudentID).
		Str("exam_id", examID.String()).
		Logger()

	sess, err := h.sessions.Open(loadCtx, identity, examID)
	if err != nil {
		if errors.Is(err, exam.ErrSessionDiscarded) {
			wsLog.Debug().Msg("Client left before the exam loaded")
			return
		}
		code, _ := sessionErrCode(err)
		wsLog.Info().Err(err).Msg("Exam not opened")
		ws.WriteError(conn, string(code), response.GetMessage(code), false)
		closeWith(conn, websocket.ClosePolicyViolation, string(code))
		return
	}

	wsLog = wsLog.With().Str("attempt_id", sess.AttemptID.String()).Logger()
	wsLog.Info().Msg("Student connected")

	h.monitor.Joined(ctx, sess)
	defer func() {
		leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer leaveCancel()
		h.monitor.Left(leaveCtx, sess)
	}()

	def := sess.Exam()
	ws.WriteTyped(conn, ws.ConfirmRequiredResponse{
		Event:           ws.EventConfirmRequired,
		AttemptID:       sess.AttemptID,
		Title:           def.Title,
		DurationMinutes: def.DurationMinutes,
		QuestionCount:   len(def.Questions),
		MarksPerCorrect: def.Marking.MarksPerCorrect,
		MarksPerWrong:   def.Marking.MarksPerWrong,
		Subjects:        exam.SubjectsOf(def.Questions),
	})

	ec := &examConn{
		conn:    conn,
		sess:    sess,
		monitor: h.monitor,
		limiter: ws.NewLimiter(h.opts.RatePerSecond, h.opts.RateBurst),
		log:     wsLog,
	}
	ec.run(ctx, frames, h.opts.TickInterval)
}

// readLoop forwards client frames in order and closes frames when the
// connection ends.
func readLoop(ctx context.Context, onClose context.CancelFunc, conn *websocket.Conn, frames chan<- []byte, log zerolog.Logger) {
	defer onClose()
	defer close(frames)
	for {
		data, err := ws.ReadFrame(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// examConn owns one session. Every session call happens on the run goroutine.
type examConn struct {
	conn    *websocket.Conn
	sess    *exam.Session
	monitor SessionMonitor
	limiter *rate.Limiter
	log     zerolog.Logger
}

func (c *examConn) run(ctx context.Context, frames <-chan []byte, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.abandon()
			return

		case data, ok := <-frames:
			if !ok {
				c.log.Debug().Msg("Connection closed")
				c.abandon()
				return
			}
			if !c.limiter.Allow() {
				c.fail(response.ErrRateLimitExceeded, true)
				continue
			}
			if done := c.handle(ctx, data); done {
				return
			}

		case <-ticker.C:
			if c.sess.State() != exam.StateRunning {
				continue
			}
			if done := c.tick(ctx); done {
				return
			}
		}
	}
}

func (c *examConn) abandon() {
	if c.sess.Abandon() {
		metrics.SessionEvents.WithLabelValues(metrics.EventAbandoned).Inc()
		c.log.Info().Int("answered", c.sess.Tracker().AnsweredCount()).Msg("Attempt abandoned")
	}
}

// handle dispatches one client frame and reports whether the socket is finished.
func (c *examConn) handle(ctx context.Context, data []byte) bool {
	action, err := ws.Decode(data)
	if err != nil {
		c.fail(response.ErrInvalidPayload, false)
		return false
	}

	switch action {
	case ws.ActionConfirm:
		return c.confirm(ctx)
	case ws.ActionDecline:
		return c.decline()
	case ws.ActionSelect:
		var req ws.SelectRequest
		if !c.decode(data, &req) {
			return false
		}
		c.save(*req.Index, c.sess.Select(*req.Index, req.Option))
	case ws.ActionClear:
		var req ws.IndexRequest
		if !c.decode(data, &req) {
			return false
		}
		c.save(*req.Index, c.sess.Clear(*req.Index))
	case ws.ActionNext:
		idx, err := c.sess.Next()
		c.navigated(idx, nil, err)
	case ws.ActionPrevious:
		idx, err := c.sess.Previous()
		c.navigated(idx, nil, err)
	case ws.ActionJump:
		var req ws.IndexRequest
		if !c.decode(data, &req) {
			return false
		}
		c.navigated(*req.Index, nil, c.sess.JumpTo(*req.Index))
	case ws.ActionFilter:
		var req ws.FilterRequest
		if !c.decode(data, &req) {
			return false
		}
		view, err := c.sess.FilterBySubject(req.Subject)
		current := -1
		if err == nil {
			current, _ = c.sess.Tracker().Current()
		}
		c.navigated(current, view, err)
	case ws.ActionVisibility:
		var req ws.VisibilityRequest
		if !c.decode(data, &req) {
			return false
		}
		if sig, ok := c.sess.RecordVisibilityChange(*req.Hidden); ok {
			c.integrity(ctx, sig)
		}
	case ws.ActionBackNav:
		if sig, ok := c.sess.RecordBackNavigation(); ok {
			c.integrity(ctx, sig)
		}
	case ws.ActionSubmit:
		var req ws.SubmitRequest
		if !c.decode(data, &req) {
			return false
		}
		return c.submit(ctx, req.Confirm)
	case ws.ActionPing:
		ws.WriteTyped(c.conn, ws.PongResponse{Event: ws.EventPong})
	default:
		c.log.Warn().Str("action", string(action)).Msg("Unknown action")
		c.fail(response.ErrUnknownAction, false)
	}
	return false
}

func (c *examConn) decode(data []byte, dst any) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		c.fail(response.ErrInvalidPayload, false)
		return false
	}
	if fields := validator.Struct(dst); fields != nil {
		ws.WriteError(c.conn, string(response.ErrValidation), joinFields(fields), false)
		return false
	}
	return true
}

func (c *examConn) confirm(ctx context.Context) bool {
	presented, err := c.sess.Confirm()
	if err != nil {
		c.sessionError(err)
		return false
	}
	metrics.SessionEvents.WithLabelValues(metrics.EventStarted).Inc()
	c.monitor.Started(ctx, c.sess)
	c.log.Info().Int("questions", len(presented)).Msg("Attempt started")

	questions := make([]ws.StartedQuestion, len(presented))
	for i, p := range presented {
		questions[i] = ws.StartedQuestion{
			Index:    p.OriginalIndex,
			Position: p.Position,
			Question: p.Question.ForStudent(),
		}
	}
	ws.WriteTyped(c.conn, ws.StartedResponse{
		Event:     ws.EventStarted,
		Remaining: c.sess.Remaining(),
		Questions: questions,
		Session:   c.sess.Snapshot(),
	})
	return false
}

func (c *examConn) decline() bool {
	if err := c.sess.Decline(); err != nil {
		c.sessionError(err)
		return false
	}
	metrics.SessionEvents.WithLabelValues(metrics.EventDeclined).Inc()
	c.log.Info().Msg("Attempt declined")
	ws.WriteTyped(c.conn, ws.CancelledResponse{Event: ws.EventCancelled})
	closeWith(c.conn, websocket.CloseNormalClosure, string(response.ErrSessionDeclined))
	return true
}

func (c *examConn) save(index int, err error) {
	if err != nil {
		c.sessionError(err)
		return
	}
	t := c.sess.Tracker()
	ws.WriteTyped(c.conn, ws.SavedResponse{
		Event:      ws.EventSaved,
		Index:      index,
		Answered:   t.AnsweredCount(),
		Unanswered: t.UnansweredCount(),
	})
}

func (c *examConn) navigated(current int, view []int, err error) {
	switch {
	case errors.Is(err, exam.ErrAtEdge):
		ws.WriteTyped(c.conn, ws.NavigatedResponse{Event: ws.EventNavigated, Current: current, AtEdge: true})
	case err != nil:
		c.sessionError(err)
	default:
		ws.WriteTyped(c.conn, ws.NavigatedResponse{Event: ws.EventNavigated, Current: current, View: view})
	}
}

func (c *examConn) integrity(ctx context.Context, sig exam.IntegritySignal) {
	ev := c.log.Info()
	if sig.Severity == model.SeverityWarning {
		ev = c.log.Warn()
	}
	ev.Str("kind", string(sig.Kind)).Int("count", sig.Count).Msg("Integrity signal")

	c.monitor.Integrity(ctx, c.sess, sig)
	ws.WriteTyped(c.conn, ws.IntegrityResponse{Event: ws.EventIntegrity, Signal: sig})
}

func (c *examConn) tick(ctx context.Context) bool {
	receipt, err := c.sess.Tick(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Auto-submit failed")
		return c.submitFailed(err)
	}
	if receipt != nil {
		c.log.Info().Float64("score", receipt.Outcome.Score).Msg("Time up, attempt auto-submitted")
		return c.graded(receipt)
	}
	ws.WriteTyped(c.conn, ws.TickResponse{Event: ws.EventTick, Remaining: c.sess.Remaining()})
	return false
}

func (c *examConn) submit(ctx context.Context, confirmed bool) bool {
	receipt, err := c.sess.Submit(ctx, confirmed)
	if err != nil {
		var warn *exam.ValidationWarning
		if errors.As(err, &warn) {
			ws.WriteTyped(c.conn, ws.WarningResponse{Event: ws.EventWarning, Unanswered: warn.Unanswered})
			return false
		}
		if errors.Is(err, exam.ErrNotRunning) {
			c.sessionError(err)
			return false
		}
		c.log.Error().Err(err).Msg("Submit failed")
		return c.submitFailed(err)
	}

	c.log.Info().
		Float64("score", receipt.Outcome.Score).
		Float64("total", receipt.Outcome.Total).
		Int("correct", receipt.Outcome.Correct).
		Msg("Exam submitted and graded")
	return c.graded(receipt)
}

// submitFailed reports a failed write. A vanished exam ends the socket; any
// other failure keeps the scored attempt for a manual retry.
func (c *examConn) submitFailed(err error) bool {
	metrics.SubmitFailures.Inc()
	if errors.Is(err, exam.ErrExamNotFound) {
		metrics.SessionEvents.WithLabelValues(metrics.EventCancelled).Inc()
		c.fail(response.ErrExamNotFound, false)
		closeWith(c.conn, websocket.CloseNormalClosure, string(response.ErrExamNotFound))
		return true
	}
	c.fail(response.ErrSubmitFailed, true)
	return false
}

func (c *examConn) graded(receipt *exam.Receipt) bool {
	ws.WriteTyped(c.conn, ws.GradedResponse{
		Event:    ws.EventGraded,
		ResultID: receipt.ResultID,
		Mode:     receipt.Mode,
		Outcome:  receipt.Outcome,
	})
	closeWith(c.conn, websocket.CloseNormalClosure, "submitted")
	return true
}

func (c *examConn) sessionError(err error) {
	code, retryable := sessionErrCode(err)
	c.fail(code, retryable)
}

func (c *examConn) fail(code response.ErrCode, retryable bool) {
	ws.WriteError(c.conn, string(code), response.GetMessage(code), retryable)
}

// sessionErrCode maps engine errors to client codes.
func sessionErrCode(err error) (response.ErrCode, bool) {
	switch {
	case errors.Is(err, exam.ErrExamNotFound):
		return response.ErrExamNotFound, false
	case errors.Is(err, exam.ErrExamNotPublished):
		return response.ErrExamNotPublished, false
	case errors.Is(err, exam.ErrNotInAudience):
		return response.ErrNotInAudience, false
	case errors.Is(err, exam.ErrMalformedQuestion):
		return response.ErrMalformedQuestion, false
	case errors.Is(err, exam.ErrIdentityRequired):
		return response.ErrTokenRequired, false
	case errors.Is(err, exam.ErrTimeUp):
		return response.ErrTimeUp, false
	case errors.Is(err, exam.ErrAnswersLocked):
		return response.ErrAnswersLocked, true
	case errors.Is(err, exam.ErrQuestionOutOfRange):
		return response.ErrQuestionRange, false
	case errors.Is(err, exam.ErrNotInView), errors.Is(err, exam.ErrEmptyView):
		return response.ErrNotInView, false
	case errors.Is(err, exam.ErrAlreadyStarted), errors.Is(err, exam.ErrNotRunning):
		return response.ErrSessionState, false
	default:
		return response.ErrInternal, true
	}
}
