package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/repository"
)

type fakeEnroller struct {
	err  error
	last *model.Student
}

func (f *fakeEnroller) Create(_ context.Context, roll, name, class, _ string) (*model.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.last = &model.Student{ID: 11, RollNumber: roll, Name: name, ClassLabel: class}
	return f.last, nil
}

type fakeResetter struct {
	reset []int
	err   error
}

func (f *fakeResetter) ResetStudentSession(_ context.Context, id int) error {
	f.reset = append(f.reset, id)
	return f.err
}

func adminRouter(e *fakeEnroller, r *fakeResetter) *gin.Engine {
	h := NewAdminHandler(e, r)
	g := gin.New()
	g.POST("/students", h.CreateStudent)
	g.POST("/students/:id/reset-session", h.ResetStudentSession)
	return g
}

func TestCreateStudent(t *testing.T) {
	body := `{"roll_number":"S-001","name":"Ana","class_label":"XII-A","password":"secret1"}`

	e := &fakeEnroller{}
	w := serve(adminRouter(e, &fakeResetter{}), jsonRequest(http.MethodPost, "/students", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if e.last == nil || e.last.ClassLabel != "XII-A" {
		t.Fatalf("enrolled %+v", e.last)
	}

	w = serve(adminRouter(&fakeEnroller{err: repository.ErrDuplicateRollNumber}, &fakeResetter{}),
		jsonRequest(http.MethodPost, "/students", body))
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: status = %d, want 409", w.Code)
	}

	w = serve(adminRouter(&fakeEnroller{}, &fakeResetter{}),
		jsonRequest(http.MethodPost, "/students", `{"roll_number":"S-001","name":"Ana","class_label":"XII-A","password":"123"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short password: status = %d, want 400", w.Code)
	}
	env := envelopeOf(t, w, nil)
	if _, ok := env.Error.Fields["password"]; !ok {
		t.Fatalf("fields = %v", env.Error.Fields)
	}
}

func TestResetStudentSession(t *testing.T) {
	r := &fakeResetter{}
	if w := serve(adminRouter(&fakeEnroller{}, r), jsonRequest(http.MethodPost, "/students/42/reset-session", "")); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(r.reset) != 1 || r.reset[0] != 42 {
		t.Fatalf("reset %v", r.reset)
	}

	if w := serve(adminRouter(&fakeEnroller{}, r), jsonRequest(http.MethodPost, "/students/zero/reset-session", "")); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", w.Code)
	}

	failing := &fakeResetter{err: errors.New("redis down")}
	if w := serve(adminRouter(&fakeEnroller{}, failing), jsonRequest(http.MethodPost, "/students/1/reset-session", "")); w.Code != http.StatusInternalServerError {
		t.Fatalf("store failure: status = %d", w.Code)
	}
}
