package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"chorus/internal/logging"
	"chorus/internal/progress"
	"chorus/internal/queue"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSubscribe streams progress events for one job over a websocket. The
// stream opens with a snapshot of the persisted record and implicitly ends at
// a terminal status.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, ok := s.jobFromPath(w, r, "/api/subscribe/")
	if !ok {
		return
	}

	updates, cancel := s.bus.Subscribe(job.ID)
	defer cancel()

	// Refetch after subscribing so a terminal transition in between cannot
	// leave the stream waiting for an event that already happened.
	job, err := s.store.GetByID(r.Context(), job.ID)
	if err != nil || job == nil {
		s.writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	snapshot := ProgressEvent{
		JobID:      job.ID,
		Percent:    job.ProgressPercent,
		Message:    job.ProgressMessage,
		Status:     string(job.Status),
		OutputPath: job.OutputPath,
	}
	if job.Status == queue.StatusFailed {
		snapshot.Message = job.ErrorMessage
	}
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}
	if job.IsTerminal() {
		return
	}

	// Reader goroutine notices client disconnect; inbound payloads are
	// ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case update, open := <-updates:
			if !open {
				return
			}
			if err := conn.WriteJSON(eventFrom(update)); err != nil {
				return
			}
			if queue.IsTerminal(update.Status) {
				return
			}
		}
	}
}

func eventFrom(update progress.Update) ProgressEvent {
	return ProgressEvent{
		JobID:      update.JobID,
		Percent:    update.Percent,
		Message:    update.Message,
		Status:     string(update.Status),
		OutputPath: update.OutputPath,
	}
}
