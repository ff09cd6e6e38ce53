package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/response"
	"github.com/stemsi/examhall/internal/service"
	"github.com/stemsi/examhall/internal/validator"
)

// ExamAdmin manages exam records.
type ExamAdmin interface {
	Create(ctx context.Context, req *model.CreateExamRequest) (*model.ExamSummary, error)
	Get(ctx context.Context, id uuid.UUID) (*model.ExamSummary, error)
	List(ctx context.Context, page, perPage int) ([]model.ExamSummary, *response.Pagination, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req *model.UpdateExamStatusRequest) error
}

// ExamResults builds the result sheet of an exam.
type ExamResults interface {
	ForExam(ctx context.Context, examID uuid.UUID) (*service.ExamResultSheet, error)
}

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	exams   ExamAdmin
	results ExamResults
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(exams ExamAdmin, results ExamResults) *ExamHandler {
	return &ExamHandler{
		exams:   exams,
		results: results,
	}
}

// ListExams godoc
// GET /api/v1/admin/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	exams, pagination, err := h.exams.List(c.Request.Context(), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.ExamSummary{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates an exam with no questions. Status defaults to DRAFT.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.exams.Create(c.Request.Context(), &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	exam, err := h.exams.Get(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateStatus godoc
// PUT /api/v1/admin/exams/:id/status
// Publishes, unpublishes or schedules an exam.
func (h *ExamHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateExamStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.exams.UpdateStatus(c.Request.Context(), id, &req); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": req.Status})
}

// GetResults godoc
// GET /api/v1/admin/exams/:id/results
// Returns every stored attempt with the exam's aggregate figures.
func (h *ExamHandler) GetResults(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	sheet, err := h.results.ForExam(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, sheet)
}
