package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/model"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

type fakeAccounts struct {
	students map[string]*model.Student
	admins   map[string]*model.Admin
}

func (f *fakeAccounts) GetByRollNumber(_ context.Context, roll string) (*model.Student, error) {
	if s, ok := f.students[roll]; ok {
		return s, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*model.Admin, error) {
	if a, ok := f.admins[email]; ok {
		return a, nil
	}
	return nil, pgx.ErrNoRows
}

// memExams is an in-memory exam store covering every exam interface the services use.
type memExams struct {
	docs map[uuid.UUID]*model.ExamDocument
}

func newMemExams(docs ...*model.ExamDocument) *memExams {
	m := &memExams{docs: map[uuid.UUID]*model.ExamDocument{}}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memExams) GetExamByID(_ context.Context, id uuid.UUID) (*model.ExamDocument, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, exam.ErrExamNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memExams) ExamExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := m.docs[id]
	return ok, nil
}

func (m *memExams) UpdateExamStatus(_ context.Context, id uuid.UUID, status model.ExamStatus) error {
	d, ok := m.docs[id]
	if !ok {
		return exam.ErrExamNotFound
	}
	d.Status = status
	return nil
}

func (m *memExams) SetSchedule(_ context.Context, id uuid.UUID, status model.ExamStatus, at *time.Time) error {
	d, ok := m.docs[id]
	if !ok {
		return exam.ErrExamNotFound
	}
	d.Status, d.ScheduledAt = status, at
	return nil
}

func (m *memExams) Create(_ context.Context, d *model.ExamDocument) error {
	d.ID = uuid.New()
	d.Questions = []json.RawMessage{}
	m.docs[d.ID] = d
	return nil
}

func (m *memExams) AppendQuestion(_ context.Context, id uuid.UUID, q json.RawMessage) (int, error) {
	d, ok := m.docs[id]
	if !ok {
		return 0, exam.ErrExamNotFound
	}
	d.Questions = append(d.Questions, q)
	return len(d.Questions), nil
}

func (m *memExams) ListExams(_ context.Context, limit, offset int) ([]model.ExamSummary, int, error) {
	var out []model.ExamSummary
	for _, d := range m.docs {
		out = append(out, d.Summary())
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return out[offset:end], total, nil
}

// memResults is an in-memory result store keyed by attempt.
type memResults struct {
	rows []model.Result
}

func (m *memResults) CreateResult(_ context.Context, r *model.Result) (uuid.UUID, error) {
	for _, row := range m.rows {
		if row.AttemptID == r.AttemptID {
			return row.ID, nil
		}
	}
	cp := *r
	cp.ID = uuid.New()
	m.rows = append(m.rows, cp)
	return cp.ID, nil
}

func (m *memResults) matches(r model.Result, examID uuid.UUID, title string) bool {
	if r.ExamID != nil {
		return *r.ExamID == examID
	}
	return title != "" && r.ExamTitle == title
}

func (m *memResults) ListResultsByStudentAndExam(_ context.Context, studentID int, examID uuid.UUID, title string) ([]model.Result, error) {
	var out []model.Result
	for _, r := range m.rows {
		if r.StudentID == studentID && m.matches(r, examID, title) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memResults) ListResultsByExam(_ context.Context, examID uuid.UUID, title string) ([]model.Result, error) {
	var out []model.Result
	for _, r := range m.rows {
		if m.matches(r, examID, title) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memResults) HasResult(_ context.Context, studentID int, examID uuid.UUID) (bool, error) {
	for _, r := range m.rows {
		if r.StudentID == studentID && r.ExamID != nil && *r.ExamID == examID {
			return true, nil
		}
	}
	return false, nil
}

func publishedExam(classes ...string) *model.ExamDocument {
	return &model.ExamDocument{
		ID:              uuid.New(),
		Title:           "Physics Mock 1",
		DurationMinutes: 10,
		Marking:         model.MarkingScheme{MarksPerCorrect: 4, MarksPerWrong: -1},
		AllowedClasses:  classes,
		Status:          model.ExamStatusPublished,
		Questions: []json.RawMessage{
			json.RawMessage(`{"question":"Unit of force?","options":["Newton","Joule"],"answer":"Newton","subject":"Physics"}`),
			json.RawMessage(`{"prompt":"H2O is?","choices":{"a":"Water","b":"Salt"},"correct":"a","subject":"Chemistry"}`),
		},
	}
}
