package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/model"
	"github.com/stemsi/examhall/internal/response"
	"github.com/stemsi/examhall/internal/validator"
)

// QuestionAdder appends authored questions to an exam.
type QuestionAdder interface {
	Add(ctx context.Context, examID uuid.UUID, req *model.AddQuestionRequest) (int, error)
}

// QuestionHandler handles question management endpoints.
type QuestionHandler struct {
	questions QuestionAdder
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questions QuestionAdder) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

// AddQuestion godoc
// POST /api/v1/admin/exams/:id/questions
// Adds a question to an exam. A pasted image in image_data is uploaded
// before the question is written.
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	examID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	count, err := h.questions.Add(c.Request.Context(), examID, &req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question_count": count})
}
