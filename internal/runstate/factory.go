package runstate

import (
	"fmt"
	"log/slog"

	"postforge/internal/config"
	"postforge/internal/logging"
)

// New selects and opens the run state backend from configuration. Selection
// is explicit: "file" and "remote" force a backend, "auto" picks remote only
// when a Cosmos connection string is present. An unknown backend name is an
// error, never a silent fallback.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	backend := cfg.RunState.Backend
	if backend == config.BackendAuto {
		if cfg.RemoteStateConfigured() {
			backend = config.BackendRemote
		} else {
			backend = config.BackendFile
		}
	}

	switch backend {
	case config.BackendFile:
		store, err := OpenFile(cfg.Paths.StateDir)
		if err != nil {
			return nil, err
		}
		logger.Info("run state store ready",
			logging.String("backend", "file"),
			logging.String("path", store.Path()),
		)
		return store, nil
	case config.BackendRemote:
		if !cfg.RemoteStateConfigured() {
			return nil, fmt.Errorf("run state backend %q requires a cosmos connection string", backend)
		}
		return OpenCosmos(CosmosOptions{
			ConnectionString: cfg.RunState.CosmosConnectionString,
			Database:         cfg.RunState.CosmosDatabase,
			Container:        cfg.RunState.CosmosRunsContainer,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown run state backend %q", backend)
	}
}
