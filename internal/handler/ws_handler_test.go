package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/service"
)

func newSocketServer(t *testing.T, opener SessionOpener, monitor SessionMonitor, claims *service.Claims, opts SocketOptions) *httptest.Server {
	t.Helper()
	h := NewWSHandler(opener, monitor, zerolog.Nop(), opts)

	r := gin.New()
	r.GET("/exams/:exam_id/stream", withClaims(claims), h.ExamWebSocketStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialExam(t *testing.T, srv *httptest.Server, examID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/exams/" + examID.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Event     string          `json:"event"`
	Code      string          `json:"code"`
	Retryable bool            `json:"retryable"`
	raw       json.RawMessage
}

// next reads the next frame, skipping countdown ticks unless wantTicks.
func next(t *testing.T, conn *websocket.Conn, wantTicks bool) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		f.raw = data
		if f.Event == "tick" && !wantTicks {
			continue
		}
		return f
	}
}

func expectEvent(t *testing.T, conn *websocket.Conn, event string, out any) frame {
	t.Helper()
	f := next(t, conn, false)
	if f.Event != event {
		t.Fatalf("got %s (code %q), want %s", f.Event, f.Code, event)
	}
	if out != nil {
		if err := json.Unmarshal(f.raw, out); err != nil {
			t.Fatalf("decode %s: %v", event, err)
		}
	}
	return f
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestExamSocketFullAttempt(t *testing.T) {
	def := sampleExam()
	sub := &fakeSubmitter{}
	mon := &fakeMonitor{}
	srv := newSocketServer(t, &fakeOpener{def: def, submitter: sub}, mon, studentClaims(), SocketOptions{})
	conn := dialExam(t, srv, def.ID)

	var intro struct {
		QuestionCount int      `json:"question_count"`
		Subjects      []string `json:"subjects"`
	}
	expectEvent(t, conn, "confirm_required", &intro)
	if intro.QuestionCount != 3 || len(intro.Subjects) != 2 {
		t.Fatalf("intro = %+v", intro)
	}

	send(t, conn, map[string]any{"action": "confirm"})
	var started struct {
		Remaining int `json:"remaining_seconds"`
		Questions []struct {
			Index    int `json:"index"`
			Question struct {
				CorrectAnswer string `json:"correct_answer"`
			} `json:"question"`
		} `json:"questions"`
	}
	expectEvent(t, conn, "started", &started)
	if started.Remaining != 60 || len(started.Questions) != 3 {
		t.Fatalf("started = %+v", started)
	}
	for _, q := range started.Questions {
		if q.Question.CorrectAnswer != "" {
			t.Fatal("answer key leaked to the client")
		}
	}

	send(t, conn, map[string]any{"action": "select", "index": 0, "option": "4"})
	var saved struct {
		Answered   int `json:"answered"`
		Unanswered int `json:"unanswered"`
	}
	expectEvent(t, conn, "saved", &saved)
	if saved.Answered != 1 || saved.Unanswered != 2 {
		t.Fatalf("saved = %+v", saved)
	}

	send(t, conn, map[string]any{"action": "select", "index": 1, "option": "Salt"})
	expectEvent(t, conn, "saved", nil)

	send(t, conn, map[string]any{"action": "next"})
	var nav struct {
		Current int `json:"current"`
	}
	expectEvent(t, conn, "navigated", &nav)
	if nav.Current != 1 {
		t.Fatalf("current = %d, want 1", nav.Current)
	}

	send(t, conn, map[string]any{"action": "visibility", "hidden": true})
	expectEvent(t, conn, "integrity", nil)

	send(t, conn, map[string]any{"action": "submit"})
	var warn struct {
		Unanswered int `json:"unanswered"`
	}
	expectEvent(t, conn, "warning", &warn)
	if warn.Unanswered != 1 {
		t.Fatalf("unanswered = %d, want 1", warn.Unanswered)
	}

	send(t, conn, map[string]any{"action": "submit", "confirm": true})
	var graded struct {
		Mode    string `json:"mode"`
		Outcome struct {
			Score       float64 `json:"score"`
			Total       float64 `json:"total"`
			Correct     int     `json:"correct"`
			Wrong       int     `json:"wrong"`
			Unattempted int     `json:"unattempted"`
		} `json:"outcome"`
	}
	expectEvent(t, conn, "graded", &graded)
	if graded.Mode != "manual" || graded.Outcome.Score != 3 || graded.Outcome.Total != 12 {
		t.Fatalf("graded = %+v", graded)
	}
	if graded.Outcome.Correct != 1 || graded.Outcome.Wrong != 1 || graded.Outcome.Unattempted != 1 {
		t.Fatalf("counts = %+v", graded.Outcome)
	}

	stored := sub.stored()
	if len(stored) != 1 || stored[0].TabSwitches != 1 || stored[0].StudentID != 7 {
		t.Fatalf("stored = %+v", stored)
	}

	waitFor(t, func() bool {
		joined, started, left, integrity := mon.counts()
		return joined == 1 && started == 1 && left == 1 && integrity == 1
	})
}

func TestExamSocketOpenFailure(t *testing.T) {
	def := sampleExam()
	srv := newSocketServer(t, &fakeOpener{def: def, err: exam.ErrNotInAudience}, &fakeMonitor{}, studentClaims(), SocketOptions{})
	conn := dialExam(t, srv, def.ID)

	f := expectEvent(t, conn, "error", nil)
	if f.Code != "NOT_IN_AUDIENCE" || f.Retryable {
		t.Fatalf("error frame = %+v", f)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("read after error = %v, want policy close", err)
	}
}

func TestExamSocketDecline(t *testing.T) {
	def := sampleExam()
	sub := &fakeSubmitter{}
	mon := &fakeMonitor{}
	srv := newSocketServer(t, &fakeOpener{def: def, submitter: sub}, mon, studentClaims(), SocketOptions{})
	conn := dialExam(t, srv, def.ID)

	expectEvent(t, conn, "confirm_required", nil)
	send(t, conn, map[string]any{"action": "decline"})
	expectEvent(t, conn, "cancelled", nil)

	if len(sub.stored()) != 0 {
		t.Fatal("declined attempt wrote a result")
	}
}

func TestExamSocketRejectsBadFrames(t *testing.T) {
	def := sampleExam()
	srv := newSocketServer(t, &fakeOpener{def: def, submitter: &fakeSubmitter{}}, &fakeMonitor{}, studentClaims(), SocketOptions{})
	conn := dialExam(t, srv, def.ID)
	expectEvent(t, conn, "confirm_required", nil)

	tests := []struct {
		name  string
		frame any
		code  string
	}{
		{"select before confirm", map[string]any{"action": "select", "index": 0, "option": "4"}, "SESSION_STATE"},
		{"unknown action", map[string]any{"action": "dance"}, "UNKNOWN_ACTION"},
		{"not json", "plain text", "INVALID_PAYLOAD"},
		{"missing index", map[string]any{"action": "jump"}, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s, ok := tt.frame.(string); ok {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
					t.Fatal(err)
				}
			} else {
				send(t, conn, tt.frame)
			}
			f := expectEvent(t, conn, "error", nil)
			if f.Code != tt.code {
				t.Fatalf("code = %q, want %q", f.Code, tt.code)
			}
		})
	}

	// The session is still usable afterwards.
	send(t, conn, map[string]any{"action": "ping"})
	expectEvent(t, conn, "pong", nil)
}

func TestExamSocketOutOfRangeAndEdge(t *testing.T) {
	def := sampleExam()
	srv := newSocketServer(t, &fakeOpener{def: def, submitter: &fakeSubmitter{}}, &fakeMonitor{}, studentClaims(), SocketOptions{})
	conn := dialExam(t, srv, def.ID)
	expectEvent(t, conn, "confirm_required", nil)
	send(t, conn, map[string]any{"action": "confirm"})
	expectEvent(t, conn, "started", nil)

	send(t, conn, map[string]any{"action": "select", "index": 9, "option": "4"})
	if f := expectEvent(t, conn, "error", nil); f.Code != "QUESTION_OUT_OF_RANGE" {
		t.Fatalf("code = %q", f.Code)
	}

	send(t, conn, map[string]any{"action": "previous"})
	var nav struct {
		Current int  `json:"current"`
		AtEdge  bool `json:"at_edge"`
	}
	expectEvent(t, conn, "navigated", &nav)
	if !nav.AtEdge || nav.Current != 0 {
		t.Fatalf("nav = %+v, want edge at 0", nav)
	}

	send(t, conn, map[string]any{"action": "filter", "subject": "math"})
	var filtered struct {
		View []int `json:"view"`
	}
	expectEvent(t, conn, "navigated", &filtered)
	if len(filtered.View) != 2 || filtered.View[0] != 0 || filtered.View[1] != 2 {
		t.Fatalf("view = %v, want [0 2]", filtered.View)
	}
}

func TestExamSocketAutoSubmitsWhenTimeRunsOut(t *testing.T) {
	def := sampleExam()
	sub := &fakeSubmitter{}
	srv := newSocketServer(t, &fakeOpener{def: def, submitter: sub}, &fakeMonitor{}, studentClaims(),
		SocketOptions{TickInterval: time.Millisecond})
	conn := dialExam(t, srv, def.ID)

	expectEvent(t, conn, "confirm_required", nil)
	send(t, conn, map[string]any{"action": "confirm"})
	expectEvent(t, conn, "started", nil)

	var graded struct {
		Mode string `json:"mode"`
	}
	expectEvent(t, conn, "graded", &graded)
	if graded.Mode != "auto" {
		t.Fatalf("mode = %q, want auto", graded.Mode)
	}
	if s := sub.stored(); len(s) != 1 || !s[0].AutoSubmit {
		t.Fatalf("stored = %+v", s)
	}
}

func TestExamSocketSubmitFailureIsRetryable(t *testing.T) {
	def := sampleExam()
	sub := &fakeSubmitter{err: errors.New("db down")}
	srv := newSocketServer(t, &fakeOpener{def: def, submitter: sub}, &fakeMonitor{}, studentClaims(), SocketOptions{})
	conn := dialExam(t, srv, def.ID)

	expectEvent(t, conn, "confirm_required", nil)
	send(t, conn, map[string]any{"action": "confirm"})
	expectEvent(t, conn, "started", nil)

	send(t, conn, map[string]any{"action": "submit", "confirm": true})
	f := expectEvent(t, conn, "error", nil)
	if f.Code != "SUBMIT_FAILED" || !f.Retryable {
		t.Fatalf("frame = %+v", f)
	}

	// Answers are locked after the first attempt.
	send(t, conn, map[string]any{"action": "select", "index": 0, "option": "4"})
	if f := expectEvent(t, conn, "error", nil); f.Code != "ANSWERS_LOCKED" {
		t.Fatalf("code = %q", f.Code)
	}

	sub.mu.Lock()
	sub.err = nil
	sub.mu.Unlock()
	send(t, conn, map[string]any{"action": "submit"})
	expectEvent(t, conn, "graded", nil)
}

func TestExamSocketRateLimit(t *testing.T) {
	def := sampleExam()
	srv := newSocketServer(t, &fakeOpener{def: def, submitter: &fakeSubmitter{}}, &fakeMonitor{}, studentClaims(),
		SocketOptions{RatePerSecond: 0.001, RateBurst: 1})
	conn := dialExam(t, srv, def.ID)
	expectEvent(t, conn, "confirm_required", nil)

	send(t, conn, map[string]any{"action": "ping"})
	expectEvent(t, conn, "pong", nil)
	send(t, conn, map[string]any{"action": "ping"})
	if f := expectEvent(t, conn, "error", nil); f.Code != "RATE_LIMIT_EXCEEDED" || !f.Retryable {
		t.Fatalf("frame = %+v", f)
	}
}

func TestExamSocketRequiresStudent(t *testing.T) {
	h := NewWSHandler(&fakeOpener{def: sampleExam()}, &fakeMonitor{}, zerolog.Nop(), SocketOptions{})
	r := gin.New()
	r.GET("/exams/:exam_id/stream", withClaims(adminClaims()), h.ExamWebSocketStream)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/exams/"+uuid.NewString()+"/stream", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
