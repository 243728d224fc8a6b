package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	printingapp "github.com/invoicing/backend/internal/application/printing"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

var (
	// ErrObjectNotFound is returned when a stored document does not exist
	ErrObjectNotFound = errors.New("document not found")
	// ErrInvalidKey is returned for keys that are empty, absolute or escape the base directory
	ErrInvalidKey = errors.New("invalid storage key")
)

var _ printingapp.DocumentStorage = (*FileSystemStorage)(nil)

// FileSystemStorageConfig contains configuration for file system storage
type FileSystemStorageConfig struct {
	// BasePath is the root directory for stored documents
	BasePath string
	// BaseURL is the URL prefix the HTTP layer serves BasePath under
	BaseURL string
	// Logger for operations
	Logger *zap.Logger
}

// FileSystemStorage stores rendered documents on the local file system.
// Keys are slash-separated paths relative to BasePath.
type FileSystemStorage struct {
	basePath string
	baseURL  string
	logger   *zap.Logger
}

// NewFileSystemStorage creates the base directory if needed
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}

	s := &FileSystemStorage{
		basePath: config.BasePath,
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		logger:   config.Logger,
	}
	if s.basePath == "" {
		s.basePath = "./data/documents"
	}
	if s.baseURL == "" {
		s.baseURL = "/api/v1/documents/files"
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", s.basePath, err)
	}
	return s, nil
}

// Upload writes data under key, creating intermediate directories
func (s *FileSystemStorage) Upload(ctx context.Context, storageKey string, data []byte, contentType string) error {
	ctx, span := telemetry.StartSpan(ctx, "storage.filesystem.upload",
		telemetry.WithAttribute(telemetry.SpanAttrStorageKey, storageKey),
		telemetry.WithAttribute(telemetry.SpanAttrBytes, len(data)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("document data is empty")
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to write document: %w", err)
	}

	s.logger.Info("Document stored",
		zap.String("key", storageKey),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)),
	)
	return nil
}

// GenerateDownloadURL returns the served URL for key. Files are served by the
// application itself, so the URL does not expire and the zero time is returned.
func (s *FileSystemStorage) GenerateDownloadURL(
	ctx context.Context,
	storageKey string,
	_ time.Duration,
) (string, time.Time, error) {
	if _, err := s.resolve(storageKey); err != nil {
		return "", time.Time{}, err
	}
	return s.baseURL + "/" + cleanKey(storageKey), time.Time{}, nil
}

// DeleteObject removes key. Deleting a missing key is not an error.
func (s *FileSystemStorage) DeleteObject(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	s.logger.Info("Document deleted", zap.String("key", storageKey))
	return nil
}

// ObjectExists reports whether key is stored
func (s *FileSystemStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat document: %w", err)
	}
	return !info.IsDir(), nil
}

// Open returns the stored document for streaming. The caller closes it.
func (s *FileSystemStorage) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return file, nil
}

// CleanupOlderThan removes stored PDFs last modified before now-age and
// returns how many were removed
func (s *FileSystemStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	deleted := 0

	err := filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || filepath.Ext(path) != ".pdf" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err == nil {
			deleted++
			s.logger.Debug("Deleted expired document", zap.String("path", path))
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return deleted, fmt.Errorf("cleanup walk failed: %w", err)
	}

	s.logger.Info("Document cleanup completed", zap.Int("deleted", deleted), zap.Duration("age", age))
	return deleted, nil
}

// resolve maps key to a path under basePath, rejecting traversal
func (s *FileSystemStorage) resolve(storageKey string) (string, error) {
	if storageKey == "" {
		return "", ErrInvalidKey
	}
	clean := filepath.Clean(filepath.FromSlash(storageKey))
	if filepath.IsAbs(clean) || strings.HasPrefix(storageKey, "/") || containsDotDot(storageKey) {
		s.logger.Warn("Blocked storage key", zap.String("key", storageKey))
		return "", ErrInvalidKey
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.basePath, clean))
	if err != nil {
		return "", fmt.Errorf("failed to resolve document path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		s.logger.Warn("Storage key escapes base path", zap.String("key", storageKey))
		return "", ErrInvalidKey
	}
	return absPath, nil
}

func cleanKey(storageKey string) string {
	return filepath.ToSlash(filepath.Clean(filepath.FromSlash(storageKey)))
}

// containsDotDot checks the raw key for ".." components before any normalization
func containsDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	return slices.Contains(parts, "..")
}
