package handler

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examhall/internal/response"
)

// UploadSaver stores an uploaded image and returns its public URL.
type UploadSaver interface {
	SaveUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error)
}

// MediaHandler handles media upload endpoints.
type MediaHandler struct {
	media UploadSaver
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(media UploadSaver) *MediaHandler {
	return &MediaHandler{media: media}
}

// UploadMedia godoc
// POST /api/v1/admin/media/upload
// Uploads an image file and returns its URL.
func (h *MediaHandler) UploadMedia(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	url, err := h.media.SaveUpload(c.Request.Context(), file, header)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"url": url})
}
