package config

const (
	defaultScratchDir         = "~/.local/share/chorus/scratch"
	defaultOutputDir          = "~/.local/share/chorus/output"
	defaultLogDir             = "~/.local/share/chorus/logs"
	defaultAPIBind            = "127.0.0.1:7512"
	defaultBatchSize          = 120
	defaultMaxConcurrentJobs  = 3
	defaultMinFreeGiB         = 2
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 10
	defaultRetentionHours     = 72
	defaultLogFormat          = "auto"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Render: Render{
			BatchSize:         defaultBatchSize,
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
			MinFreeGiB:        defaultMinFreeGiB,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			RetentionHours:     defaultRetentionHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
