package config

import (
	"fmt"
	"strings"
)

// Batch size bounds keep per-batch scratch usage within the memory budget the
// pipeline was sized for.
const (
	MinBatchSize = 100
	MaxBatchSize = 200
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if c.Render.BatchSize == 0 {
		c.Render.BatchSize = defaultBatchSize
	}
	if c.Render.BatchSize < MinBatchSize {
		c.Render.BatchSize = MinBatchSize
	}
	if c.Render.BatchSize > MaxBatchSize {
		c.Render.BatchSize = MaxBatchSize
	}
	if c.Render.MaxConcurrentJobs <= 0 {
		c.Render.MaxConcurrentJobs = defaultMaxConcurrentJobs
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.RetentionHours <= 0 {
		c.Workflow.RetentionHours = defaultRetentionHours
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		return fmt.Errorf("paths.scratch_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return fmt.Errorf("paths.output_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("paths.log_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return fmt.Errorf("paths.api_bind must not be empty")
	}
	if c.Render.MinFreeGiB < 0 {
		return fmt.Errorf("render.min_free_gib must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json")
	}
	return nil
}
