package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Render.BatchSize != defaultBatchSize {
		t.Fatalf("batch size = %d, want %d", cfg.Render.BatchSize, defaultBatchSize)
	}
	if cfg.Render.MaxConcurrentJobs != defaultMaxConcurrentJobs {
		t.Fatalf("max concurrent jobs = %d, want %d", cfg.Render.MaxConcurrentJobs, defaultMaxConcurrentJobs)
	}
	if cfg.Paths.APIBind != defaultAPIBind {
		t.Fatalf("api bind = %q, want %q", cfg.Paths.APIBind, defaultAPIBind)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	scratch := t.TempDir()
	path := writeConfig(t, `
[paths]
scratch_dir = "`+scratch+`"
api_bind = "127.0.0.1:9000"

[render]
batch_size = 150
max_concurrent_jobs = 5

[tools]
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"
`)

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Paths.ScratchDir != scratch {
		t.Fatalf("scratch dir = %q, want %q", cfg.Paths.ScratchDir, scratch)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("api bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Render.BatchSize != 150 || cfg.Render.MaxConcurrentJobs != 5 {
		t.Fatalf("render overrides not applied: %+v", cfg.Render)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("ffmpeg binary = %q", cfg.FFmpegBinary())
	}
	if cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("ffprobe binary = %q", cfg.FFprobeBinary())
	}
}

func TestBatchSizeClampedToBounds(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{50, MinBatchSize},
		{500, MaxBatchSize},
		{0, defaultBatchSize},
		{130, 130},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.Render.BatchSize = tc.in
		if err := cfg.normalize(); err != nil {
			t.Fatalf("normalize(%d): %v", tc.in, err)
		}
		if cfg.Render.BatchSize != tc.want {
			t.Fatalf("batch size %d normalized to %d, want %d", tc.in, cfg.Render.BatchSize, tc.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Paths.OutputDir = "  "
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "output_dir") {
		t.Fatalf("expected output_dir error, got %v", err)
	}

	cfg = Default()
	cfg.Render.MinFreeGiB = -1
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "min_free_gib") {
		t.Fatalf("expected min_free_gib error, got %v", err)
	}

	cfg = Default()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected logging.format error, got %v", err)
	}
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.ScratchDir = filepath.Join(root, "scratch")
	cfg.Paths.OutputDir = filepath.Join(root, "output")
	cfg.Paths.LogDir = filepath.Join(root, "logs", "nested")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.ScratchDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %q missing after EnsureDirectories", dir)
		}
	}
}

func TestCreateSampleLoadsCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample config not detected")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config invalid: %v", err)
	}
}

func TestExpandPathResolvesHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	expanded, err := ExpandPath("~/chorus-test")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if expanded != filepath.Join(home, "chorus-test") {
		t.Fatalf("expanded = %q", expanded)
	}
}
