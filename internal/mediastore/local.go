package mediastore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"postforge/internal/logging"
)

// LocalStore writes media files under a directory and returns file:// URLs.
type LocalStore struct {
	dir    string
	logger *slog.Logger
}

// OpenLocal ensures the media directory exists.
func OpenLocal(dir string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure media directory: %w", err)
	}
	return &LocalStore{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "mediastore-local"),
	}, nil
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	// Names come from run trace ids; Base guards against path escapes all
	// the same.
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write media %s: %w", name, err)
	}
	s.logger.Debug("media written", logging.String("path", path), logging.Int("bytes", len(data)))
	return "file://" + path, nil
}

func (s *LocalStore) Close() error { return nil }
