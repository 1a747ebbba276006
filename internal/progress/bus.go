// Package progress fans render progress out to persistence and live
// subscribers. The persisted job record is the source of truth; live
// delivery is best-effort at-most-once, so a slow subscriber never stalls
// the pipeline.
package progress

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"chorus/internal/logging"
	"chorus/internal/queue"
)

// Update is one progress event for a job.
type Update struct {
	JobID      string
	Percent    float64
	Message    string
	Status     queue.Status
	OutputPath string
}

// Bus publishes job progress. Writes to the store are throttled to 10%
// milestones; subscriber fan-out happens on every publish.
type Bus struct {
	store  *queue.Store
	logger *slog.Logger

	mu            sync.Mutex
	subscribers   map[string]map[int]chan Update
	nextID        int
	lastPersisted map[string]float64
}

const subscriberBuffer = 16

// NewBus constructs a progress bus over the given store.
func NewBus(store *queue.Store, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		store:         store,
		logger:        logging.NewComponentLogger(logger, "progress"),
		subscribers:   make(map[string]map[int]chan Update),
		lastPersisted: make(map[string]float64),
	}
}

// Publish records a progress update. Milestone persistence failures are
// logged, not fatal: the next milestone retries and live subscribers still
// receive the event.
func (b *Bus) Publish(ctx context.Context, update Update) {
	if update.Status == queue.StatusProcessing && b.shouldPersist(update.JobID, update.Percent) {
		if err := b.store.UpdateProgress(ctx, update.JobID, update.Percent, update.Message); err != nil {
			b.logger.Warn("persist progress milestone failed",
				logging.String(logging.FieldJobID, update.JobID),
				logging.Error(err),
			)
		}
	}
	b.fanOut(update)
}

// shouldPersist throttles store writes to 10% milestones.
func (b *Bus) shouldPersist(jobID string, percent float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	last, ok := b.lastPersisted[jobID]
	if ok && math.Floor(percent/10) <= math.Floor(last/10) {
		return false
	}
	b.lastPersisted[jobID] = percent
	return true
}

func (b *Bus) fanOut(update Update) {
	b.mu.Lock()
	subs := b.subscribers[update.JobID]
	channels := make([]chan Update, 0, len(subs))
	for _, ch := range subs {
		channels = append(channels, ch)
	}
	terminal := queue.IsTerminal(update.Status)
	if terminal {
		delete(b.subscribers, update.JobID)
		delete(b.lastPersisted, update.JobID)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- update:
		default:
			// At-most-once: drop rather than block the pipeline.
		}
		if terminal {
			close(ch)
		}
	}
}

// Subscribe registers a live subscriber for one job. The channel closes when
// the job publishes a terminal status or when cancel is called. Callers
// re-poll the store for anything missed.
func (b *Bus) Subscribe(jobID string) (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	b.mu.Lock()
	if b.subscribers[jobID] == nil {
		b.subscribers[jobID] = make(map[int]chan Update)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[jobID][id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		subs := b.subscribers[jobID]
		if _, ok := subs[id]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, jobID)
			}
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
