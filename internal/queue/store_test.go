package queue_test

import (
	"context"
	"testing"
	"time"

	"chorus/internal/queue"
	"chorus/internal/testsupport"
)

func TestNewJobAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/source.mp4")
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("new job status = %s, want queued", job.Status)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourcePath != "/tmp/source.mp4" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	missing, err := store.GetByID(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("GetByID for missing job failed: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown job id")
	}
}

func TestNewJobRequiresSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.NewJob(context.Background(), queue.NewJobParams{}); err == nil {
		t.Fatal("expected error when source path missing")
	}
}

func TestNextQueuedIsFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/tmp/a.mp4")
	time.Sleep(5 * time.Millisecond) // distinct created_at
	testsupport.NewJob(t, store, "/tmp/b.mp4")

	next, err := store.NextQueued(ctx)
	if err != nil {
		t.Fatalf("NextQueued failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest job first, got %#v", next)
	}
}

func TestTransitionGuardsExpectedStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.mp4")

	ok, err := store.Transition(ctx, job.ID, queue.StatusQueued, queue.StatusReady, "Admitted")
	if err != nil || !ok {
		t.Fatalf("Transition queued->ready: ok=%v err=%v", ok, err)
	}
	// Repeating the same transition must fail: the job is no longer queued.
	ok, err = store.Transition(ctx, job.ID, queue.StatusQueued, queue.StatusReady, "Admitted")
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if ok {
		t.Fatal("expected guarded transition to be rejected")
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.mp4")
	mustTransition(t, store, job.ID, queue.StatusQueued, queue.StatusReady)
	mustTransition(t, store, job.ID, queue.StatusReady, queue.StatusProcessing)

	if err := store.UpdateProgress(ctx, job.ID, 40, "batch 2"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, 20, "stale update"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.ProgressPercent != 40 {
		t.Fatalf("progress = %v, want 40 (must not decrease)", fetched.ProgressPercent)
	}
}

func TestProgressCapsBelowCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.mp4")
	mustTransition(t, store, job.ID, queue.StatusQueued, queue.StatusReady)
	mustTransition(t, store, job.ID, queue.StatusReady, queue.StatusProcessing)

	if err := store.UpdateProgress(ctx, job.ID, 100, "last batch"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.ProgressPercent != 99 {
		t.Fatalf("progress = %v, want 99 (100 is reserved for completed)", fetched.ProgressPercent)
	}

	ok, err := store.Complete(ctx, job.ID, "/out/a.mp4")
	if err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}
	fetched, _ = store.GetByID(ctx, job.ID)
	if fetched.ProgressPercent != 100 {
		t.Fatalf("completed progress = %v, want 100", fetched.ProgressPercent)
	}
}

func TestCompleteOnlyFromProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.mp4")

	ok, err := store.Complete(ctx, job.ID, "/out/a.mp4")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if ok {
		t.Fatal("queued job must not complete directly")
	}

	mustTransition(t, store, job.ID, queue.StatusQueued, queue.StatusReady)
	mustTransition(t, store, job.ID, queue.StatusReady, queue.StatusProcessing)

	ok, err = store.Complete(ctx, job.ID, "/out/a.mp4")
	if err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}

	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusCompleted || fetched.ProgressPercent != 100 {
		t.Fatalf("unexpected completed job: %#v", fetched)
	}
	if fetched.OutputPath != "/out/a.mp4" {
		t.Fatalf("output path = %q", fetched.OutputPath)
	}
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.mp4")
	if ok, err := store.Fail(ctx, job.ID, "boom"); err != nil || !ok {
		t.Fatalf("Fail: ok=%v err=%v", ok, err)
	}

	if ok, _ := store.MarkCancelled(ctx, job.ID); ok {
		t.Fatal("failed job must not become cancelled")
	}
	if ok, _ := store.RequestCancel(ctx, job.ID); ok {
		t.Fatal("cancel flag must not be set on a terminal job")
	}

	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != queue.StatusFailed || fetched.ErrorMessage != "boom" {
		t.Fatalf("unexpected job after terminal writes: %#v", fetched)
	}
}

func TestCancelFlagRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.mp4")

	flagged, err := store.CancelRequested(ctx, job.ID)
	if err != nil || flagged {
		t.Fatalf("fresh job should not be flagged: flagged=%v err=%v", flagged, err)
	}

	if ok, err := store.RequestCancel(ctx, job.ID); err != nil || !ok {
		t.Fatalf("RequestCancel: ok=%v err=%v", ok, err)
	}
	flagged, err = store.CancelRequested(ctx, job.ID)
	if err != nil || !flagged {
		t.Fatalf("expected cancel flag: flagged=%v err=%v", flagged, err)
	}
}

func TestFailInterruptedReclassifiesInFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	processing := testsupport.NewJob(t, store, "/tmp/a.mp4")
	mustTransition(t, store, processing.ID, queue.StatusQueued, queue.StatusReady)
	mustTransition(t, store, processing.ID, queue.StatusReady, queue.StatusProcessing)

	queued := testsupport.NewJob(t, store, "/tmp/b.mp4")
	done := testsupport.NewJob(t, store, "/tmp/c.mp4")
	mustTransition(t, store, done.ID, queue.StatusQueued, queue.StatusReady)
	mustTransition(t, store, done.ID, queue.StatusReady, queue.StatusProcessing)
	if ok, err := store.Complete(ctx, done.ID, "/out/c.mp4"); err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}

	affected, err := store.FailInterrupted(ctx)
	if err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}

	fetched, _ := store.GetByID(ctx, processing.ID)
	if fetched.Status != queue.StatusFailed || fetched.ErrorMessage != queue.InterruptedReason {
		t.Fatalf("interrupted job = %#v", fetched)
	}
	fetchedQueued, _ := store.GetByID(ctx, queued.ID)
	if fetchedQueued.Status != queue.StatusQueued {
		t.Fatal("queued jobs must survive restart untouched")
	}
	fetchedDone, _ := store.GetByID(ctx, done.ID)
	if fetchedDone.Status != queue.StatusCompleted {
		t.Fatal("completed jobs must survive restart untouched")
	}
}

func TestCountActiveAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := testsupport.NewJob(t, store, "/tmp/a.mp4")
	testsupport.NewJob(t, store, "/tmp/b.mp4")
	mustTransition(t, store, a.ID, queue.StatusQueued, queue.StatusReady)

	count, err := store.CountActive(ctx)
	if err != nil {
		t.Fatalf("CountActive failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("active count = %d, want 1", count)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusQueued] != 1 || stats[queue.StatusReady] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestReapTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "/tmp/a.mp4")
	if ok, err := store.Fail(ctx, job.ID, "boom"); err != nil || !ok {
		t.Fatalf("Fail: ok=%v err=%v", ok, err)
	}
	live := testsupport.NewJob(t, store, "/tmp/b.mp4")

	reaped, err := store.ReapTerminal(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReapTerminal failed: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("reaped = %d, want 1", reaped)
	}
	if fetched, _ := store.GetByID(ctx, live.ID); fetched == nil {
		t.Fatal("non-terminal job must not be reaped")
	}
}

func mustTransition(t *testing.T, store *queue.Store, id string, from, to queue.Status) {
	t.Helper()
	ok, err := store.Transition(context.Background(), id, from, to, string(to))
	if err != nil || !ok {
		t.Fatalf("transition %s->%s: ok=%v err=%v", from, to, ok, err)
	}
}
