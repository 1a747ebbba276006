package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"chorus/internal/config"
	"chorus/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a minimal valid render job for tests.
func NewJob(t testing.TB, store *queue.Store, sourcePath string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		SourcePath:    sourcePath,
		SubtitlesJSON: MustJSON(t, []map[string]any{{"start_time": 0.0, "end_time": 1.0, "text": "test"}}),
		WordsJSON:     MustJSON(t, []map[string]any{{"word": "test", "start_time": 0.0, "end_time": 1.0}}),
		OverlayJSON:   "{}",
		SettingsJSON:  MustJSON(t, map[string]any{"resolution": "720p", "frame_rate": 30, "quality": "medium", "format": "mp4"}),
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

// MustJSON marshals a value or fails the test.
func MustJSON(t testing.TB, value any) string {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}
