package testsupport

import (
	"path/filepath"
	"testing"

	"chorus/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Render.MinFreeGiB = 0
	cfg.Workflow.QueuePollInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxConcurrentJobs overrides the scheduler cap on the test config.
func WithMaxConcurrentJobs(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Render.MaxConcurrentJobs = limit
	}
}

// WithBatchSize overrides the pipeline batch size on the test config. The
// production clamp to [100, 200] is bypassed on purpose so pipeline tests can
// exercise multi-batch behavior with tiny synthetic inputs.
func WithBatchSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Render.BatchSize = size
	}
}
