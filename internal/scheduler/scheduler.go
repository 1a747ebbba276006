package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chorus/internal/config"
	"chorus/internal/logging"
	"chorus/internal/progress"
	"chorus/internal/queue"
	"chorus/internal/render"
	"chorus/internal/services"
)

// Scheduler admits queued jobs into a fixed pool of render slots and drives
// each admitted job through the pipeline to a terminal status.
type Scheduler struct {
	cfg          *config.Config
	store        *queue.Store
	bus          *progress.Bus
	pipeline     *render.Pipeline
	logger       *slog.Logger
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	slots   chan struct{}
}

// New constructs a scheduler over the given pipeline.
func New(cfg *config.Config, store *queue.Store, bus *progress.Bus, pipeline *render.Pipeline, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:          cfg,
		store:        store,
		bus:          bus,
		pipeline:     pipeline,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		slots:        make(chan struct{}, cfg.Render.MaxConcurrentJobs),
	}
}

// Start reclassifies jobs interrupted by the previous run, then begins
// admission and retention loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	interrupted, err := s.store.FailInterrupted(runCtx)
	if err != nil {
		s.Stop()
		return err
	}
	if interrupted > 0 {
		s.logger.Warn("reclassified jobs interrupted by restart",
			logging.Int64("jobs", interrupted),
		)
	}

	s.wg.Add(1)
	go s.runAdmission(runCtx)
	if s.cfg.Workflow.RetentionHours > 0 {
		s.wg.Add(1)
		go s.runRetention(runCtx)
	}
	return nil
}

// Stop terminates background processing and waits for in-flight jobs to
// settle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// runAdmission promotes queued jobs in FIFO order whenever a render slot is
// free. A single admission goroutine preserves submission order.
func (s *Scheduler) runAdmission(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := s.store.NextQueued(ctx)
		if err != nil {
			s.logger.Error("failed to fetch next queued job", logging.Error(err))
			s.sleep(ctx, time.Duration(s.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if job == nil {
			s.sleep(ctx, s.pollInterval)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case s.slots <- struct{}{}:
		}

		ok, err := s.store.Transition(ctx, job.ID, queue.StatusQueued, queue.StatusReady, "Admitted")
		if err != nil || !ok {
			if err != nil {
				s.logger.Error("admission transition failed",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err),
				)
			}
			<-s.slots
			continue
		}

		s.wg.Add(1)
		go s.runJob(ctx, job.ID)
	}
}

func (s *Scheduler) runJob(ctx context.Context, id string) {
	defer s.wg.Done()
	defer func() { <-s.slots }()

	jobCtx := services.WithJobID(ctx, id)
	logger := s.logger.With(logging.String(logging.FieldJobID, id))

	ok, err := s.store.Transition(jobCtx, id, queue.StatusReady, queue.StatusProcessing, "Rendering")
	if err != nil || !ok {
		logger.Error("processing transition failed", logging.Error(err))
		return
	}
	job, err := s.store.GetByID(jobCtx, id)
	if err != nil || job == nil {
		logger.Error("job lookup failed after admission", logging.Error(err))
		return
	}

	outputPath, runErr := s.pipeline.Run(jobCtx, job)
	switch {
	case runErr == nil:
		if _, err := s.store.Complete(jobCtx, id, outputPath); err != nil {
			logger.Error("completion write failed", logging.Error(err))
			return
		}
		s.bus.Publish(jobCtx, progress.Update{
			JobID:      id,
			Percent:    100,
			Message:    "Render complete",
			Status:     queue.StatusCompleted,
			OutputPath: outputPath,
		})
		logger.Info("render completed", logging.String("output", outputPath))

	case errors.Is(runErr, render.ErrCancelled):
		if _, err := s.store.MarkCancelled(jobCtx, id); err != nil {
			logger.Error("cancellation write failed", logging.Error(err))
			return
		}
		s.bus.Publish(jobCtx, progress.Update{
			JobID:   id,
			Message: "Cancelled",
			Status:  queue.StatusCancelled,
		})
		logger.Info("render cancelled")

	case ctx.Err() != nil:
		// Daemon shutdown mid-render. The job stays processing; the next
		// start reclassifies it as interrupted.
		logger.Warn("render interrupted by shutdown")

	default:
		message := services.Message(runErr)
		if _, err := s.store.Fail(jobCtx, id, message); err != nil {
			logger.Error("failure write failed", logging.Error(err))
			return
		}
		s.bus.Publish(jobCtx, progress.Update{
			JobID:   id,
			Message: message,
			Status:  queue.StatusFailed,
		})
		logger.Error("render failed",
			logging.String("kind", string(services.Classify(runErr))),
			logging.Error(runErr),
		)
	}
}

// runRetention prunes terminal jobs older than the configured retention
// window.
func (s *Scheduler) runRetention(ctx context.Context) {
	defer s.wg.Done()
	retention := time.Duration(s.cfg.Workflow.RetentionHours) * time.Hour
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reaped, err := s.store.ReapTerminal(ctx, time.Now().Add(-retention))
			if err != nil {
				s.logger.Warn("terminal job cleanup failed", logging.Error(err))
				continue
			}
			if reaped > 0 {
				s.logger.Info("pruned terminal jobs", logging.Int64("jobs", reaped))
			}
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
