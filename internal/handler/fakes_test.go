package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/middleware"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/response"
	"github.com/stemsi/examhall/internal/service"
	"github.com/stemsi/examhall/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

func studentClaims() *service.Claims {
	return &service.Claims{
		TokenType:  service.TokenTypeStudent,
		UserID:     7,
		Name:       "Ana",
		ClassLabel: "XII-A",
	}
}

func adminClaims(perms ...model.Permission) *service.Claims {
	c := &service.Claims{TokenType: service.TokenTypeAdmin, UserID: 1, Name: "Root"}
	for _, p := range perms {
		c.Permissions = append(c.Permissions, string(p))
	}
	return c
}

// withClaims stands in for the JWT middleware.
func withClaims(claims *service.Claims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextKeyClaims, claims)
		}
		c.Next()
	}
}

// keepOrder leaves the question order untouched.
type keepOrder struct{}

func (keepOrder) Shuffle(int, func(i, j int)) {}

func sampleExam() *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:              uuid.New(),
		Title:           "Midterm",
		DurationMinutes: 1,
		Marking:         model.MarkingScheme{MarksPerCorrect: 4, MarksPerWrong: -1},
		AllowedClasses:  []string{"XII-A"},
		Status:          model.ExamStatusPublished,
		Questions: []model.Question{
			{Prompt: "2+2", Options: []string{"3", "4"}, CorrectAnswer: "4", Subject: "Math"},
			{Prompt: "H2O", Options: []string{"Water", "Salt"}, CorrectAnswer: "Water", Subject: "Science"},
			{Prompt: "3*3", Options: []string{"6", "9"}, CorrectAnswer: "9", Subject: "Math"},
		},
	}
}

type fakeSubmitter struct {
	mu      sync.Mutex
	err     error
	results []model.Result
}

func (s *fakeSubmitter) Submit(_ context.Context, r *model.Result) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return uuid.Nil, s.err
	}
	s.results = append(s.results, *r)
	return uuid.New(), nil
}

func (s *fakeSubmitter) stored() []model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Result(nil), s.results...)
}

type fakeOpener struct {
	def       *model.ExamDefinition
	err       error
	submitter *fakeSubmitter
}

func (o *fakeOpener) Open(_ context.Context, identity exam.Identity, examID uuid.UUID, opts ...exam.SessionOption) (*exam.Session, error) {
	if o.err != nil {
		return nil, o.err
	}
	if examID != o.def.ID {
		return nil, exam.ErrExamNotFound
	}
	opts = append([]exam.SessionOption{exam.WithShuffler(keepOrder{})}, opts...)
	return exam.NewSession(o.def, identity, o.submitter, opts...), nil
}

type fakeMonitor struct {
	mu        sync.Mutex
	joined    int
	started   int
	left      int
	integrity []exam.IntegritySignal
}

func (m *fakeMonitor) Joined(context.Context, *exam.Session) {
	m.mu.Lock()
	m.joined++
	m.mu.Unlock()
}

func (m *fakeMonitor) Started(context.Context, *exam.Session) {
	m.mu.Lock()
	m.started++
	m.mu.Unlock()
}

func (m *fakeMonitor) Left(context.Context, *exam.Session) {
	m.mu.Lock()
	m.left++
	m.mu.Unlock()
}

func (m *fakeMonitor) Integrity(_ context.Context, _ *exam.Session, sig exam.IntegritySignal) {
	m.mu.Lock()
	m.integrity = append(m.integrity, sig)
	m.mu.Unlock()
}

func (m *fakeMonitor) counts() (joined, started, left, integrity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined, m.started, m.left, len(m.integrity)
}

// envelopeOf decodes a JSON response envelope, unpacking data into out.
func envelopeOf(t *testing.T, w *httptest.ResponseRecorder, out any) response.Response {
	t.Helper()
	var raw struct {
		Data  json.RawMessage     `json:"data"`
		Error *response.ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	if out != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return response.Response{Error: raw.Error}
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
