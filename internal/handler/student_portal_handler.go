package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/middleware"
	"github.com/stemsi/examhall/internal/response"
	"github.com/stemsi/examhall/internal/service"
)

// ExamPreviewer shows a student the exam before they open the socket.
type ExamPreviewer interface {
	Preview(ctx context.Context, identity exam.Identity, examID uuid.UUID) (*service.ExamPreview, error)
}

// StudentResults reads a student's own results.
type StudentResults interface {
	ForStudent(ctx context.Context, studentID int, examID uuid.UUID) (*service.StudentResultView, error)
}

// StudentPortalHandler handles student-facing endpoints outside the socket.
type StudentPortalHandler struct {
	sessions ExamPreviewer
	results  StudentResults
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(sessions ExamPreviewer, results StudentResults) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessions: sessions,
		results:  results,
	}
}

// GetExam godoc
// GET /api/v1/student/exams/:exam_id
// Returns the exam summary and whether the student already submitted it.
func (h *StudentPortalHandler) GetExam(c *gin.Context) {
	identity := middleware.GetClaims(c).Identity()
	if !identity.Present() {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}

	preview, err := h.sessions.Preview(c.Request.Context(), identity, examID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, preview)
}

// GetMyResults godoc
// GET /api/v1/student/exams/:exam_id/results
// Returns the student's attempts, latest sheet, subject accuracy and standing.
func (h *StudentPortalHandler) GetMyResults(c *gin.Context) {
	identity := middleware.GetClaims(c).Identity()
	if !identity.Present() {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := paramUUID(c, "exam_id")
	if !ok {
		return
	}

	view, err := h.results.ForStudent(c.Request.Context(), identity.StudentID, examID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}
