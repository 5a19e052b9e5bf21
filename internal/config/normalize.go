package config

import (
	"os"
	"strings"
)

// Environment variables honored at load time. Queue overrides mirror the
// deployment convention of naming queues per environment.
const (
	EnvRunStateBackend = "RUN_STATE_BACKEND"
	EnvContentQueue    = "CONTENT_TASKS_QUEUE"
	EnvMediaQueue      = "MEDIA_TASKS_QUEUE"
	EnvPublishQueue    = "PUBLISH_TASKS_QUEUE"
	EnvErrorQueue      = "ERROR_TASKS_QUEUE"
	EnvCosmosConn      = "COSMOS_DB_CONNECTION_STRING"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Media.LocalDir, err = expandPath(c.Media.LocalDir); err != nil {
		return err
	}

	c.Pipeline.Driver = strings.ToLower(strings.TrimSpace(c.Pipeline.Driver))
	c.RunState.Backend = strings.ToLower(strings.TrimSpace(c.RunState.Backend))
	c.Media.Backend = strings.ToLower(strings.TrimSpace(c.Media.Backend))

	applyEnvOverride(&c.RunState.Backend, EnvRunStateBackend)
	applyEnvOverride(&c.RunState.CosmosConnectionString, EnvCosmosConn)
	applyEnvOverride(&c.Pipeline.ContentQueue, EnvContentQueue)
	applyEnvOverride(&c.Pipeline.MediaQueue, EnvMediaQueue)
	applyEnvOverride(&c.Pipeline.PublishQueue, EnvPublishQueue)
	applyEnvOverride(&c.Pipeline.ErrorQueue, EnvErrorQueue)

	if len(c.Pipeline.DefaultChannels) == 0 {
		c.Pipeline.DefaultChannels = []string{"feed"}
	}
	return nil
}

func applyEnvOverride(target *string, name string) {
	if value, ok := os.LookupEnv(name); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			*target = trimmed
		}
	}
}
