package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chorus/internal/config"
	"chorus/internal/services"
)

func TestNewJSONWritesStructuredRecords(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{Level: "debug", Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("render started", String(FieldJobID, "job-1"), Int(FieldBatch, 3))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if record["msg"] != "render started" || record[FieldJobID] != "job-1" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record[FieldBatch] != float64(3) {
		t.Fatalf("batch field = %v", record[FieldBatch])
	}
}

func TestNewConsoleRespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{Level: "warn", Format: "console", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record leaked below warn level:\n%s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing:\n%s", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewFromConfigWritesDaemonLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("new from config: %v", err)
	}
	logger.Info("daemon ready")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "chorusd.log"))
	if err != nil {
		t.Fatalf("read daemon log: %v", err)
	}
	if !strings.Contains(string(data), "daemon ready") {
		t.Fatalf("daemon log missing record:\n%s", data)
	}
}

func TestContextFieldsCarriesJobAndStage(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "job-9")
	ctx = services.WithStage(ctx, "extract")

	fields := ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	got := map[string]string{}
	for _, attr := range fields {
		got[attr.Key] = attr.Value.String()
	}
	if got[FieldJobID] != "job-9" || got[FieldStage] != "extract" {
		t.Fatalf("unexpected fields: %v", got)
	}

	if fields := ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("empty context produced fields: %v", fields)
	}
}

func TestWithContextAugmentsRecords(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	base, err := New(Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-5")
	WithContext(ctx, base).Info("batch complete")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record[FieldJobID] != "job-5" {
		t.Fatalf("job id not propagated: %v", record)
	}
}
