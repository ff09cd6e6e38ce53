package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/response"
	"github.com/stemsi/examhall/internal/validator"
)

// StudentEnroller creates student accounts.
type StudentEnroller interface {
	Create(ctx context.Context, rollNumber, name, classLabel, password string) (*model.Student, error)
}

// SessionResetter ends a student's login session.
type SessionResetter interface {
	ResetStudentSession(ctx context.Context, studentID int) error
}

// AdminHandler handles student account endpoints used by staff.
type AdminHandler struct {
	students StudentEnroller
	sessions SessionResetter
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(students StudentEnroller, sessions SessionResetter) *AdminHandler {
	return &AdminHandler{students: students, sessions: sessions}
}

// CreateStudent godoc
// POST /api/v1/admin/students
func (h *AdminHandler) CreateStudent(c *gin.Context) {
	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.students.Create(c.Request.Context(), req.RollNumber, req.Name, req.ClassLabel, req.Password)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// ResetStudentSession godoc
// POST /api/v1/admin/students/:id/reset-session
// Clears a student's login so they can sign in on another device.
func (h *AdminHandler) ResetStudentSession(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("id"))
	if err != nil || studentID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessions.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student session reset"})
}
