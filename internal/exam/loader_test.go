package exam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/model"
)

var (
	loaderNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	student   = Identity{StudentID: 7, Name: "Asha", ClassLabel: "XII-Science"}
)

func examDoc(status model.ExamStatus, scheduledAt *time.Time, classes ...string) *model.ExamDocument {
	return &model.ExamDocument{
		ID:              uuid.New(),
		Title:           "Weekly Test",
		ScheduledAt:     scheduledAt,
		DurationMinutes: 30,
		Marking:         model.MarkingScheme{MarksPerCorrect: 4, MarksPerWrong: -1},
		AllowedClasses:  classes,
		Status:          status,
		Questions: rawQuestions(
			`{"questionText":"Speed of light?","options":["3e8","3e6"],"correctAnswer":"3e8","subject":"Physics"}`,
			`{"question":"NaCl is?","option1":"Salt","option2":"Sugar","answer":"A","subject":"Chemistry"}`,
		),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestLoaderLoad(t *testing.T) {
	past := timePtr(loaderNow.Add(-time.Minute))
	future := timePtr(loaderNow.Add(time.Hour))

	tests := []struct {
		name        string
		doc         *model.ExamDocument
		identity    Identity
		wantErr     error
		wantUpdates int
	}{
		{name: "published", doc: examDoc(model.ExamStatusPublished, nil), identity: student},
		{name: "auto publish due", doc: examDoc(model.ExamStatusAutoPublish, past), identity: student, wantUpdates: 1},
		{name: "auto publish exactly at schedule", doc: examDoc(model.ExamStatusAutoPublish, timePtr(loaderNow)), identity: student, wantUpdates: 1},
		{name: "auto publish not yet due", doc: examDoc(model.ExamStatusAutoPublish, future), identity: student, wantErr: ErrExamNotPublished},
		{name: "auto publish without schedule", doc: examDoc(model.ExamStatusAutoPublish, nil), identity: student, wantErr: ErrExamNotPublished},
		{name: "draft", doc: examDoc(model.ExamStatusDraft, past), identity: student, wantErr: ErrExamNotPublished},
		{name: "class in audience", doc: examDoc(model.ExamStatusPublished, nil, "xii-science ", "XI-Science"), identity: student},
		{name: "class outside audience", doc: examDoc(model.ExamStatusPublished, nil, "XI-Science"), identity: student, wantErr: ErrNotInAudience},
		{name: "missing identity", doc: examDoc(model.ExamStatusPublished, nil), identity: Identity{}, wantErr: ErrIdentityRequired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeExamStore(tc.doc)
			loader := NewLoader(store, testLogger()).WithClock(fixedClock(loaderNow))

			def, err := loader.Load(context.Background(), tc.doc.ID, tc.identity)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				if len(store.updates) != tc.wantUpdates {
					t.Fatalf("status writes = %d, want %d", len(store.updates), tc.wantUpdates)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if def.Status != model.ExamStatusPublished {
				t.Fatalf("status = %s, want PUBLISHED", def.Status)
			}
			if len(store.updates) != tc.wantUpdates {
				t.Fatalf("status writes = %d, want %d", len(store.updates), tc.wantUpdates)
			}
			if len(def.Questions) != 2 || def.Questions[1].CorrectAnswer != "Salt" {
				t.Fatalf("questions not normalized: %+v", def.Questions)
			}
		})
	}
}

func TestLoaderNotFound(t *testing.T) {
	loader := NewLoader(newFakeExamStore(), testLogger())
	_, err := loader.Load(context.Background(), uuid.New(), student)
	if err != ErrExamNotFound {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestLoaderStoreFailure(t *testing.T) {
	store := newFakeExamStore()
	store.getErr = errStoreDown
	_, err := NewLoader(store, testLogger()).Load(context.Background(), uuid.New(), student)
	if !errors.Is(err, errStoreDown) || errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}

func TestLoaderMalformedQuestion(t *testing.T) {
	doc := examDoc(model.ExamStatusPublished, nil)
	doc.Questions = append(doc.Questions, rawQuestions(`"just a string"`)...)
	_, err := NewLoader(newFakeExamStore(doc), testLogger()).Load(context.Background(), doc.ID, student)
	if !errors.Is(err, ErrMalformedQuestion) {
		t.Fatalf("err = %v, want ErrMalformedQuestion", err)
	}
}

func TestLoaderPublishWriteFailureStillDelivers(t *testing.T) {
	doc := examDoc(model.ExamStatusAutoPublish, timePtr(loaderNow.Add(-time.Hour)))
	store := newFakeExamStore(doc)
	store.updateErr = errStoreDown

	def, err := NewLoader(store, testLogger()).WithClock(fixedClock(loaderNow)).Load(context.Background(), doc.ID, student)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Status != model.ExamStatusPublished {
		t.Fatalf("status = %s, want PUBLISHED", def.Status)
	}
}

func TestLoaderDiscardsLateLoad(t *testing.T) {
	doc := examDoc(model.ExamStatusPublished, nil)
	store := newFakeExamStore(doc)
	ctx, cancel := context.WithCancel(context.Background())
	store.afterGet = cancel

	_, err := NewLoader(store, testLogger()).Load(ctx, doc.ID, student)
	if !errors.Is(err, ErrSessionDiscarded) {
		t.Fatalf("err = %v, want ErrSessionDiscarded", err)
	}
}

func TestMaterialize(t *testing.T) {
	due := &model.ExamDefinition{ID: uuid.New(), Status: model.ExamStatusAutoPublish, ScheduledAt: timePtr(loaderNow.Add(-time.Second))}
	store := newFakeExamStore()
	loader := NewLoader(store, testLogger()).WithClock(fixedClock(loaderNow))

	changed, err := loader.Materialize(context.Background(), due)
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v, want true,nil", changed, err)
	}
	if due.Status != model.ExamStatusPublished {
		t.Fatalf("in-memory status = %s", due.Status)
	}
	if len(store.updates) != 1 || store.updates[0] != model.ExamStatusPublished {
		t.Fatalf("writes = %v, want one PUBLISHED write", store.updates)
	}

	changed, err = loader.Materialize(context.Background(), due)
	if err != nil || changed {
		t.Fatalf("second materialize changed=%v err=%v", changed, err)
	}
	if len(store.updates) != 1 {
		t.Fatalf("writes = %d after second call, want 1", len(store.updates))
	}

	store.updateErr = errStoreDown
	again := &model.ExamDefinition{ID: uuid.New(), Status: model.ExamStatusAutoPublish, ScheduledAt: timePtr(loaderNow)}
	if _, err := loader.Materialize(context.Background(), again); !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want store error", err)
	}
	if again.Status != model.ExamStatusAutoPublish {
		t.Fatalf("status changed to %s despite failed write", again.Status)
	}
}
