package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"postforge/internal/config"
	"postforge/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewForDaemon(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	daemon, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", logging.Error(err))
		return
	}
	defer daemon.Close()

	if err := daemon.Start(ctx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return
	}
	logger.Info("postforged running",
		logging.String(logging.FieldDriver, cfg.Pipeline.Driver),
		logging.String("api_bind", cfg.Paths.APIBind),
	)

	<-ctx.Done()
	logger.Info("postforged shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	daemon.Shutdown(shutdownCtx)
}
