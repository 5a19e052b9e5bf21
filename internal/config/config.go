package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
}

// Pipeline contains driver selection and queue wiring.
type Pipeline struct {
	// Driver selects the coordination strategy: "chained" or "workflow".
	Driver string `toml:"driver"`
	// Queue subjects for the chained driver. Overridable via
	// CONTENT_TASKS_QUEUE, MEDIA_TASKS_QUEUE, PUBLISH_TASKS_QUEUE,
	// ERROR_TASKS_QUEUE.
	ContentQueue string `toml:"content_queue"`
	MediaQueue   string `toml:"media_queue"`
	PublishQueue string `toml:"publish_queue"`
	ErrorQueue   string `toml:"error_queue"`
	// Channels published to when a post plan names none.
	DefaultChannels []string `toml:"default_channels"`
}

// Queueing contains NATS connection settings for the chained driver.
type Queueing struct {
	URL string `toml:"url"`
	// Embedded starts an in-process NATS server instead of dialing URL.
	Embedded bool `toml:"embedded"`
}

// RunStateBackend values accepted by the run-state factory.
const (
	BackendAuto   = "auto"
	BackendFile   = "file"
	BackendRemote = "remote"
)

// RunState selects and configures the run state store backend.
type RunState struct {
	// Backend is one of "auto", "file", "remote". RUN_STATE_BACKEND
	// overrides it.
	Backend string `toml:"backend"`
	// Cosmos settings used by the remote backend.
	CosmosConnectionString string `toml:"cosmos_connection_string"`
	CosmosDatabase         string `toml:"cosmos_database"`
	CosmosRunsContainer    string `toml:"cosmos_runs_container"`
	CosmosPostsContainer   string `toml:"cosmos_posts_container"`
}

// Agents contains connection settings for the generation collaborators.
type Agents struct {
	// Endpoint is the base URL of the agent runs API. Empty endpoint puts
	// the copywriter into deterministic fallback mode.
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// PollIntervalMS is the run-status polling cadence.
	PollIntervalMS int `toml:"poll_interval_ms"`
	RetryAttempts  int `toml:"retry_attempts"`
}

// Media contains object store settings for generated media.
type Media struct {
	// Backend is "local" or "blob".
	Backend              string `toml:"backend"`
	LocalDir             string `toml:"local_dir"`
	BlobConnectionString string `toml:"blob_connection_string"`
	BlobContainer        string `toml:"blob_container"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for postforge.
//
// Configuration sections by subsystem:
//   - Paths: state/log directories and the API bind address
//   - Pipeline: driver selection, queue subjects, fan-out channels
//   - Queueing: NATS connection for the chained driver
//   - RunState: run state store backend selection and Cosmos settings
//   - Agents: copywriter/image collaborator endpoint and retry cadence
//   - Media: generated media object store
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Queueing Queueing `toml:"queueing"`
	RunState RunState `toml:"run_state"`
	Agents   Agents   `toml:"agents"`
	Media    Media    `toml:"media"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/postforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("postforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir}
	if c.Media.Backend == MediaLocal && strings.TrimSpace(c.Media.LocalDir) != "" {
		dirs = append(dirs, c.Media.LocalDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
