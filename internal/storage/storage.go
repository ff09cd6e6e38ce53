// Package storage hosts question images and returns durable URLs for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/config"
)

// ErrUploadFailed wraps every backend failure so callers can tell an upload
// problem apart from a validation problem.
var ErrUploadFailed = errors.New("upload failed")

// Uploader stores an object under name and returns the URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// New builds the uploader selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Uploader, error) {
	switch cfg.StorageDriver {
	case config.StorageMinio:
		u, err := NewMinioUploader(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("endpoint", cfg.MinioEndpoint).
			Str("bucket", cfg.MinioBucket).
			Msg("MinIO storage ready")
		return u, nil
	case config.StorageLocal, "":
		log.Info().Str("dir", cfg.UploadDir).Msg("Local storage ready")
		return NewLocalUploader(cfg.UploadDir, "/uploads"), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func uploadErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUploadFailed, op, err)
}
