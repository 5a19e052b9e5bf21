package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"

	"postforge/internal/agents"
	"postforge/internal/api"
	"postforge/internal/chain"
	"postforge/internal/config"
	"postforge/internal/docstore"
	"postforge/internal/flow"
	"postforge/internal/logging"
	"postforge/internal/mediastore"
	"postforge/internal/phase"
	"postforge/internal/retry"
	"postforge/internal/run"
	"postforge/internal/runstate"
)

// pipelineDriver is what both drivers expose to the daemon.
type pipelineDriver interface {
	Start(ctx context.Context) error
	Submit(ctx context.Context, msg run.QueueMessage) error
	Stop()
}

// daemon owns every long-lived component and tears them down in reverse
// order of construction.
type daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	lock     *flock.Flock
	states   runstate.Store
	recorder *runstate.Recorder
	docs     docstore.Store
	media    mediastore.Store
	bus      *chain.Bus
	driver   pipelineDriver
	server   *api.Server
}

// bootstrap builds the daemon: instance lock, stores, collaborators,
// driver, API.
func bootstrap(_ context.Context, cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, logger: logger}

	d.lock = flock.New(filepath.Join(cfg.Paths.StateDir, "postforged.lock"))
	locked, err := d.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, errors.New("another postforged instance holds the state directory")
	}

	d.states, err = runstate.New(cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.recorder = runstate.NewRecorder(d.states, logger)

	d.docs, err = openDocStore(cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.media, err = mediastore.New(cfg, logger)
	if err != nil {
		d.Close()
		return nil, err
	}

	copywriter, images, err := agents.NewFromConfig(cfg, d.docs, logger)
	if err != nil {
		d.Close()
		return nil, err
	}

	deps := &phase.Deps{
		Recorder:        d.recorder,
		Docs:            d.docs,
		Media:           d.media,
		Copywriter:      copywriter,
		Images:          images,
		Publisher:       phase.NewLogPublisher(logger),
		DefaultChannels: cfg.Pipeline.DefaultChannels,
		Retry:           retry.Options{Attempts: cfg.Agents.RetryAttempts},
		Logger:          logger,
	}

	switch cfg.Pipeline.Driver {
	case config.DriverChained:
		d.bus, err = chain.Connect(cfg.Queueing, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.driver = chain.NewDriver(d.bus, deps, cfg.Pipeline, logger)
	case config.DriverWorkflow:
		d.driver = flow.NewDriver(deps, logger)
	default:
		d.Close()
		return nil, fmt.Errorf("unknown pipeline driver %q", cfg.Pipeline.Driver)
	}

	d.server, err = api.NewServer(d.recorder, d.driver, cfg.Paths.APIBind, logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// openDocStore picks Cosmos when a connection string is present, otherwise
// the in-memory store seeded from the state directory's catalog file.
func openDocStore(cfg *config.Config, logger *slog.Logger) (docstore.Store, error) {
	if cfg.RemoteStateConfigured() {
		return docstore.OpenCosmos(docstore.CosmosOptions{
			ConnectionString: cfg.RunState.CosmosConnectionString,
			Database:         cfg.RunState.CosmosDatabase,
			PostsContainer:   cfg.RunState.CosmosPostsContainer,
		}, logger)
	}

	store := docstore.NewMemory()
	catalogPath := filepath.Join(cfg.Paths.StateDir, "catalog.json")
	count, err := store.LoadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}
	docLogger := logging.NewComponentLogger(logger, "docstore")
	if count > 0 {
		docLogger.Info("catalog loaded",
			logging.String("path", catalogPath),
			logging.Int("documents", count),
		)
	} else {
		docLogger.Warn("no catalog found; seed brands and plans before submitting runs",
			logging.String("path", catalogPath),
		)
	}
	return store, nil
}

func (d *daemon) Start(ctx context.Context) error {
	if err := d.driver.Start(ctx); err != nil {
		return err
	}
	go func() {
		if err := d.server.Start(); err != nil {
			d.logger.Error("http server stopped", logging.Error(err))
		}
	}()
	return nil
}

// Shutdown stops intake first, then lets the driver drain.
func (d *daemon) Shutdown(ctx context.Context) {
	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Warn("http shutdown", logging.Error(err))
		}
	}
	if d.driver != nil {
		d.driver.Stop()
	}
}

// Close releases everything bootstrap acquired. Safe on a partially built
// daemon.
func (d *daemon) Close() {
	if d.bus != nil {
		d.bus.Close()
	}
	if d.media != nil {
		_ = d.media.Close()
	}
	if d.docs != nil {
		_ = d.docs.Close()
	}
	if d.states != nil {
		_ = d.states.Close()
	}
	if d.lock != nil {
		_ = d.lock.Unlock()
	}
}
