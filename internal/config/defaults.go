package config

const (
	defaultStateDir          = "~/.local/share/postforge/state"
	defaultLogDir            = "~/.local/share/postforge/logs"
	defaultAPIBind           = "127.0.0.1:7610"
	defaultDriver            = "chained"
	defaultContentQueue      = "content-tasks"
	defaultMediaQueue        = "media-tasks"
	defaultPublishQueue      = "publish-tasks"
	defaultErrorQueue        = "error-tasks"
	defaultNATSURL           = "nats://127.0.0.1:4222"
	defaultRunStateBackend   = BackendAuto
	defaultCosmosDatabase    = "postforge"
	defaultRunsContainer     = "agentRuns"
	defaultPostsContainer    = "posts"
	defaultAgentTimeout      = 60
	defaultAgentPollMS       = 750
	defaultAgentRetries      = 3
	defaultMediaBackend      = "local"
	defaultMediaLocalDir     = "~/.local/share/postforge/media"
	defaultBlobContainer     = "generated-media"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Pipeline: Pipeline{
			Driver:          defaultDriver,
			ContentQueue:    defaultContentQueue,
			MediaQueue:      defaultMediaQueue,
			PublishQueue:    defaultPublishQueue,
			ErrorQueue:      defaultErrorQueue,
			DefaultChannels: []string{"feed"},
		},
		Queueing: Queueing{
			URL:      defaultNATSURL,
			Embedded: true,
		},
		RunState: RunState{
			Backend:              defaultRunStateBackend,
			CosmosDatabase:       defaultCosmosDatabase,
			CosmosRunsContainer:  defaultRunsContainer,
			CosmosPostsContainer: defaultPostsContainer,
		},
		Agents: Agents{
			TimeoutSeconds: defaultAgentTimeout,
			PollIntervalMS: defaultAgentPollMS,
			RetryAttempts:  defaultAgentRetries,
		},
		Media: Media{
			Backend:       defaultMediaBackend,
			LocalDir:      defaultMediaLocalDir,
			BlobContainer: defaultBlobContainer,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
