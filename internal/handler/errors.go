package handler

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/repository"
	"github.com/stemsi/examhall/internal/response"
	"github.com/stemsi/examhall/internal/service"
	"github.com/stemsi/examhall/internal/storage"
)

// failWith writes the HTTP error for a service or engine error.
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, exam.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, exam.ErrExamNotPublished):
		response.Fail(c, http.StatusForbidden, response.ErrExamNotPublished)
	case errors.Is(err, exam.ErrNotInAudience):
		response.Fail(c, http.StatusForbidden, response.ErrNotInAudience)
	case errors.Is(err, exam.ErrIdentityRequired):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	case errors.Is(err, exam.ErrMalformedQuestion):
		response.FailWithMessage(c, http.StatusUnprocessableEntity, response.ErrMalformedQuestion, err.Error())
	case errors.Is(err, service.ErrNoResult):
		response.Fail(c, http.StatusNotFound, response.ErrNoResult)
	case errors.Is(err, service.ErrNoQuestions), errors.Is(err, service.ErrScheduleRequired),
		errors.Is(err, service.ErrCorrectAnswerNotOption):
		response.FailWithMessage(c, http.StatusUnprocessableEntity, response.ErrValidation, err.Error())
	case errors.Is(err, service.ErrUnsupportedFileType):
		response.Fail(c, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile)
	case errors.Is(err, service.ErrFileTooLarge):
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
	case errors.Is(err, service.ErrInvalidDataURI):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrValidation, err.Error())
	case errors.Is(err, repository.ErrDuplicateRollNumber), errors.Is(err, repository.ErrDuplicateEmail):
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, err.Error())
	case errors.Is(err, storage.ErrUploadFailed):
		response.Fail(c, http.StatusBadGateway, response.ErrUploadFailed)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramUUID parses a UUID path parameter, writing the error response on failure.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// joinFields flattens validation messages for channels that have no field map.
func joinFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = fields[k]
	}
	return strings.Join(msgs, "; ")
}
