package mediastore

import (
	"context"
	"fmt"
	"log/slog"

	"postforge/internal/config"
)

// Store writes generated media and returns a stable reference URL for it.
type Store interface {
	// Put stores data under name and returns the URL the published post
	// should reference. Writing the same name twice overwrites; media
	// writes are idempotent by key.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Close() error
}

// New selects the media backend from configuration.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Media.Backend {
	case config.MediaLocal:
		return OpenLocal(cfg.Media.LocalDir, logger)
	case config.MediaBlob:
		return OpenBlob(BlobOptions{
			ConnectionString: cfg.Media.BlobConnectionString,
			Container:        cfg.Media.BlobContainer,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Media.Backend)
	}
}
