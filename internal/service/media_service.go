package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/storage"
)

// Sentinel errors for media uploads.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrInvalidDataURI      = errors.New("invalid data uri")
)

var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MediaService validates images and hands them to the configured uploader.
type MediaService struct {
	uploader storage.Uploader
	maxBytes int64
	log      zerolog.Logger
}

// NewMediaService creates a new MediaService.
func NewMediaService(uploader storage.Uploader, maxBytes int64, log zerolog.Logger) *MediaService {
	return &MediaService{
		uploader: uploader,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "media_service").Logger(),
	}
}

// SaveUpload stores a multipart image and returns its URL.
func (s *MediaService) SaveUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, header.Size, s.maxBytes)
	}

	// Sniff instead of trusting the client's Content-Type.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	contentType := http.DetectContentType(head[:n])

	body := io.MultiReader(bytes.NewReader(head[:n]), file)
	return s.store(ctx, contentType, body, header.Size)
}

// SaveDataURI decodes a base64 image data URI, as pasted into the question
// editor, and stores it.
func (s *MediaService) SaveDataURI(ctx context.Context, dataURI string) (string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(dataURI, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", ErrInvalidDataURI
	}
	declared := strings.TrimSuffix(meta, ";base64")

	if int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxBytes+2 {
		return "", fmt.Errorf("%w: data uri (max: %d)", ErrFileTooLarge, s.maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, len(data), s.maxBytes)
	}

	contentType := http.DetectContentType(data)
	if contentType != declared {
		s.log.Debug().Str("declared", declared).Str("detected", contentType).Msg("Data URI type mismatch")
	}
	return s.store(ctx, contentType, bytes.NewReader(data), int64(len(data)))
}

func (s *MediaService) store(ctx context.Context, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s (allowed: %s)",
			ErrUnsupportedFileType, contentType, strings.Join(allowedTypes(), ", "))
	}

	url, err := s.uploader.Upload(ctx, uuid.NewString()+ext, body, size, contentType)
	if err != nil {
		s.log.Error().Err(err).Str("content_type", contentType).Msg("Upload failed")
		return "", err
	}
	s.log.Info().Str("url", url).Int64("bytes", size).Msg("Media stored")
	return url, nil
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
