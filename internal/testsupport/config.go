package testsupport

import (
	"path/filepath"
	"testing"

	"postforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Media.LocalDir = filepath.Join(base, "media")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDriver selects the pipeline driver on the test config.
func WithDriver(driver string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.Driver = driver
	}
}

// WithAgentEndpoint points the agents section at a test server.
func WithAgentEndpoint(endpoint string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Agents.Endpoint = endpoint
	}
}

// WithRunStateBackend forces the run state backend selection.
func WithRunStateBackend(backend string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.RunState.Backend = backend
	}
}
