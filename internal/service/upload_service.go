package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/immxrtalbeast/huddle/lib/logger/sl"
)

// UploadService writes uploaded files into a flat directory as
// "<unix-ms>-<basename>".
type UploadService struct {
	dir     string
	maxSize int64
	log     *slog.Logger
	now     func() time.Time
}

func NewUploadService(dir string, maxSize int64, log *slog.Logger) *UploadService {
	if log == nil {
		log = slog.Default()
	}
	return &UploadService{dir: dir, maxSize: maxSize, log: log, now: time.Now}
}

func (s *UploadService) Save(ctx context.Context, name string, size int64, r io.Reader) (*StoredFile, error) {
	const op = "service.upload.save"
	log := s.log.With(slog.String("op", op))

	if r == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoFile)
	}
	if size > s.maxSize {
		return nil, fmt.Errorf("%s: %w", op, ErrFileTooLarge)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := sanitizeFileName(name)
	if base == "" {
		return nil, fmt.Errorf("%s: %w: missing file name", op, ErrValidation)
	}
	stored := strconv.FormatInt(s.now().UnixMilli(), 10) + "-" + base

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		log.Error("failed to create upload dir", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dst := filepath.Join(s.dir, stored)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		log.Error("failed to create upload file", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// the declared size is client supplied; cap what is actually copied
	written, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil && written > s.maxSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		if !errors.Is(err, ErrFileTooLarge) {
			log.Error("failed to write upload", sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("file uploaded", slog.String("file", stored), slog.Int64("size", written))
	return &StoredFile{
		Name:         stored,
		OriginalName: base,
		Path:         path.Join("/uploads", stored),
		Size:         written,
	}, nil
}

// sanitizeFileName keeps only the final path element so a crafted name cannot
// escape the upload directory.
func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}
