package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/model"
)

var errStoreDown = errors.New("store unavailable")

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeExamStore struct {
	docs        map[uuid.UUID]*model.ExamDocument
	updates     []model.ExamStatus
	updateErr   error
	getErr      error
	afterGet    func()
	existsCalls int
}

func newFakeExamStore(docs ...*model.ExamDocument) *fakeExamStore {
	s := &fakeExamStore{docs: make(map[uuid.UUID]*model.ExamDocument)}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeExamStore) GetExamByID(_ context.Context, id uuid.UUID) (*model.ExamDocument, error) {
	if s.afterGet != nil {
		defer s.afterGet()
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("exam %s: %w", id, ErrExamNotFound)
	}
	cp := *d
	return &cp, nil
}

func (s *fakeExamStore) UpdateExamStatus(_ context.Context, id uuid.UUID, status model.ExamStatus) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, status)
	if d, ok := s.docs[id]; ok {
		d.Status = status
	}
	return nil
}

func (s *fakeExamStore) ExamExists(_ context.Context, id uuid.UUID) (bool, error) {
	s.existsCalls++
	if s.getErr != nil {
		return false, s.getErr
	}
	_, ok := s.docs[id]
	return ok, nil
}

// fakeResultStore mimics the attempt-keyed upsert of the real repository.
type fakeResultStore struct {
	results   []model.Result
	byAttempt map[uuid.UUID]uuid.UUID
	failures  int
	writes    int
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{byAttempt: make(map[uuid.UUID]uuid.UUID)}
}

func (s *fakeResultStore) CreateResult(_ context.Context, r *model.Result) (uuid.UUID, error) {
	s.writes++
	if s.failures > 0 {
		s.failures--
		return uuid.Nil, errStoreDown
	}
	if id, ok := s.byAttempt[r.AttemptID]; ok {
		return id, nil
	}
	id := uuid.New()
	stored := *r
	stored.ID = id
	s.results = append(s.results, stored)
	s.byAttempt[r.AttemptID] = id
	return id, nil
}

func (s *fakeResultStore) ListResultsByStudentAndExam(_ context.Context, studentID int, examID uuid.UUID, title string) ([]model.Result, error) {
	var out []model.Result
	for _, r := range s.results {
		if r.StudentID == studentID && matchesExam(r, examID, title) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeResultStore) ListResultsByExam(_ context.Context, examID uuid.UUID, title string) ([]model.Result, error) {
	var out []model.Result
	for _, r := range s.results {
		if matchesExam(r, examID, title) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matchesExam(r model.Result, examID uuid.UUID, title string) bool {
	if r.ExamID != nil {
		return *r.ExamID == examID
	}
	return r.ExamTitle == title
}

type recordingObserver struct {
	stored []*model.Result
}

func (o *recordingObserver) ResultStored(_ context.Context, r *model.Result) {
	o.stored = append(o.stored, r)
}

// reverseShuffler reverses the input so tests get a known, non-identity order.
type reverseShuffler struct{}

func (reverseShuffler) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func rawQuestions(docs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

func mcq(prompt, subject, correct string, options ...string) model.Question {
	return model.Question{Prompt: prompt, Subject: subject, CorrectAnswer: correct, Options: options}
}

func fiveQuestionExam() *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:              uuid.New(),
		Title:           "Physics Mock 1",
		DurationMinutes: 1,
		Marking:         model.MarkingScheme{MarksPerCorrect: 4, MarksPerWrong: -1},
		Status:          model.ExamStatusPublished,
		Questions: []model.Question{
			mcq("q0", "Physics", "a", "a", "b", "c", "d"),
			mcq("q1", "Physics", "b", "a", "b", "c", "d"),
			mcq("q2", "Chemistry", "c", "a", "b", "c", "d"),
			mcq("q3", "Chemistry", "d", "a", "b", "c", "d"),
			mcq("q4", "Maths", "a", "a", "b", "c", "d"),
		},
	}
}
