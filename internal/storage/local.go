package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader writes objects to a directory served statically by the router.
type LocalUploader struct {
	dir     string
	urlBase string
}

// NewLocalUploader creates an uploader rooted at dir whose files are served under urlBase.
func NewLocalUploader(dir, urlBase string) *LocalUploader {
	return &LocalUploader{dir: dir, urlBase: strings.TrimRight(urlBase, "/")}
}

func (u *LocalUploader) Upload(ctx context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", uploadErr("local", err)
	}
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", uploadErr("create upload dir", err)
	}

	dest := filepath.Join(u.dir, filepath.Base(name))
	f, err := os.Create(dest)
	if err != nil {
		return "", uploadErr("create file", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(dest)
		return "", uploadErr("write file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return "", uploadErr("close file", err)
	}

	return u.urlBase + "/" + filepath.Base(name), nil
}
