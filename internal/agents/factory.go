package agents

import (
	"log/slog"
	"time"

	"postforge/internal/config"
	"postforge/internal/logging"
	"postforge/internal/retry"
)

// NewFromConfig builds the copywriter and image generator pair. With no
// endpoint configured both degrade to their local deterministic forms, so a
// bare config still produces publishable runs.
func NewFromConfig(cfg *config.Config, tools ToolSource, logger *slog.Logger) (Copywriter, ImageGenerator, error) {
	if !cfg.AgentEndpointConfigured() {
		logging.NewComponentLogger(logger, "agents").Info("no agent endpoint configured, using local fallbacks")
		return NewFallbackCopywriter(), NewPlaceholderImageGenerator(), nil
	}

	client, err := NewClient(ClientOptions{
		Endpoint:     cfg.Agents.Endpoint,
		APIKey:       cfg.Agents.APIKey,
		Model:        cfg.Agents.Model,
		Timeout:      time.Duration(cfg.Agents.TimeoutSeconds) * time.Second,
		PollInterval: time.Duration(cfg.Agents.PollIntervalMS) * time.Millisecond,
		Retry:        retry.Options{Attempts: cfg.Agents.RetryAttempts},
	}, tools, logger)
	if err != nil {
		return nil, nil, err
	}
	return NewRemoteCopywriter(client), NewRemoteImageGenerator(client), nil
}
