// Package storage keeps generated artifacts (invoice PDFs) on the local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/logging"

	"github.com/google/uuid"
)

type Artifact struct {
	ID       string
	FileName string
	Path     string
}

type FileInfo struct {
	FileName string
	Path     string
	Size     int64
	ModTime  time.Time
}

// LocalSink stores artifacts under a single directory as <uuid>.<ext>.
type LocalSink struct {
	dir       string
	urlPrefix string
	log       *slog.Logger
}

func NewLocalSink(dir, urlPrefix string, logger *slog.Logger) (*LocalSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", dir, err)
	}
	return &LocalSink{
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		log:       logging.Module(logger, "FileStorage"),
	}, nil
}

func (s *LocalSink) Store(ctx context.Context, data []byte, suggestedName string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ext := strings.TrimPrefix(filepath.Ext(suggestedName), ".")
	if ext == "" {
		ext = "bin"
	}
	name := id + "." + ext
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", suggestedName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("store %s: %w", suggestedName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("store %s: %w", suggestedName, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("store %s: %w", suggestedName, err)
	}

	s.log.Info("file stored", "fn", "store", "file", name, "suggested", suggestedName, "bytes", len(data))
	return &Artifact{ID: id, FileName: name, Path: path}, nil
}

// Fetch returns nil without error when the file does not exist.
func (s *LocalSink) Fetch(ctx context.Context, fileName string) (*FileInfo, error) {
	path, err := s.resolve("fetch", fileName)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("file does not exist", "fn", "fetch", "file", fileName)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", fileName, err)
	}
	return &FileInfo{FileName: fileName, Path: path, Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (s *LocalSink) Delete(ctx context.Context, fileName string) error {
	path, err := s.resolve("delete", fileName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", fileName, err)
	}
	s.log.Info("file deleted", "fn", "delete", "file", fileName)
	return nil
}

// PublicURL is the path the static file server exposes fileName under.
func (s *LocalSink) PublicURL(fileName string) string {
	return s.urlPrefix + "/" + fileName
}

func (s *LocalSink) resolve(op, fileName string) (string, error) {
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return "", apperrors.Validation(op, "invalid file name %q", fileName)
	}
	return filepath.Join(s.dir, fileName), nil
}
