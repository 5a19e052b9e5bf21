package config

import (
	"fmt"
	"strings"
)

// Drivers accepted by the pipeline section.
const (
	DriverChained  = "chained"
	DriverWorkflow = "workflow"
)

// Media backends accepted by the media section.
const (
	MediaLocal = "local"
	MediaBlob  = "blob"
)

// Validate checks configuration coherence. It runs after normalize, so all
// values are trimmed and environment overrides are applied.
func (c *Config) Validate() error {
	switch c.Pipeline.Driver {
	case DriverChained, DriverWorkflow:
	default:
		return fmt.Errorf("pipeline.driver: unsupported value %q (want %q or %q)", c.Pipeline.Driver, DriverChained, DriverWorkflow)
	}

	switch c.RunState.Backend {
	case BackendAuto, BackendFile, BackendRemote:
	default:
		return fmt.Errorf("run_state.backend: unsupported value %q (want auto, file, or remote)", c.RunState.Backend)
	}

	if c.RunState.Backend == BackendRemote {
		if strings.TrimSpace(c.RunState.CosmosConnectionString) == "" {
			return fmt.Errorf("run_state.backend %q requires cosmos_connection_string (or %s)", BackendRemote, EnvCosmosConn)
		}
	}

	switch c.Media.Backend {
	case MediaLocal, MediaBlob:
	default:
		return fmt.Errorf("media.backend: unsupported value %q (want local or blob)", c.Media.Backend)
	}
	if c.Media.Backend == MediaBlob && strings.TrimSpace(c.Media.BlobConnectionString) == "" {
		return fmt.Errorf("media.backend %q requires blob_connection_string", c.Media.Backend)
	}

	for name, value := range map[string]string{
		"pipeline.content_queue": c.Pipeline.ContentQueue,
		"pipeline.media_queue":   c.Pipeline.MediaQueue,
		"pipeline.publish_queue": c.Pipeline.PublishQueue,
		"pipeline.error_queue":   c.Pipeline.ErrorQueue,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	if c.Agents.PollIntervalMS <= 0 {
		return fmt.Errorf("agents.poll_interval_ms must be positive, got %d", c.Agents.PollIntervalMS)
	}
	if c.Agents.RetryAttempts <= 0 {
		return fmt.Errorf("agents.retry_attempts must be positive, got %d", c.Agents.RetryAttempts)
	}
	return nil
}

// RemoteStateConfigured reports whether the remote run-state backend has the
// settings it needs. The auto backend uses this to pick a store.
func (c *Config) RemoteStateConfigured() bool {
	return strings.TrimSpace(c.RunState.CosmosConnectionString) != "" &&
		strings.TrimSpace(c.RunState.CosmosDatabase) != "" &&
		strings.TrimSpace(c.RunState.CosmosRunsContainer) != ""
}

// AgentEndpointConfigured reports whether the remote agent collaborators can
// be reached. Without an endpoint the copywriter degrades to its
// deterministic fallback.
func (c *Config) AgentEndpointConfigured() bool {
	return strings.TrimSpace(c.Agents.Endpoint) != ""
}
