package preflight

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"chorus/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Scratch directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for %s: %#v", dir, result)
	}

	missing := CheckDirectoryAccess("Scratch directory", filepath.Join(dir, "nope"))
	if missing.Passed {
		t.Fatalf("expected failure for missing dir: %#v", missing)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	original := statfs
	t.Cleanup(func() { statfs = original })

	statfs = func(path string) (uint64, uint64, error) {
		return 50 << 30, 100 << 30, nil
	}
	if result := CheckDiskSpace("Scratch free space", "/scratch", 10); !result.Passed {
		t.Fatalf("expected pass with 50 GiB free: %#v", result)
	}

	statfs = func(path string) (uint64, uint64, error) {
		return 1 << 30, 100 << 30, nil
	}
	if result := CheckDiskSpace("Scratch free space", "/scratch", 10); result.Passed {
		t.Fatalf("expected failure with 1 GiB free: %#v", result)
	}

	statfs = func(path string) (uint64, uint64, error) {
		return 0, 0, errors.New("statfs unavailable")
	}
	if result := CheckDiskSpace("Scratch free space", "/scratch", 10); result.Passed {
		t.Fatalf("expected failure on statfs error: %#v", result)
	}
}

func TestRunAllCoversConfiguredPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	cfg.Render.MinFreeGiB = 1

	results := RunAll(context.Background(), cfg)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, result := range results[:2] {
		if !result.Passed {
			t.Fatalf("directory check failed: %#v", result)
		}
	}
	if !Passed(results[:2]) {
		t.Fatal("Passed should be true for passing subset")
	}
}
