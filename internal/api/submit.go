package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chorus/internal/overlay"
	"chorus/internal/preflight"
	"chorus/internal/queue"
	"chorus/internal/render"
	"chorus/internal/timing"
)

const maxSubmissionBytes = 8 << 20

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed submission: %v", err))
		return
	}

	params, err := buildJobParams(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Resource exhaustion is rejected here, before a job record exists,
	// rather than failing the job mid-render.
	if s.cfg.Render.MinFreeGiB > 0 {
		if result := preflight.CheckDiskSpace("scratch", s.cfg.Paths.ScratchDir, s.cfg.Render.MinFreeGiB); !result.Passed {
			s.writeError(w, http.StatusServiceUnavailable, "insufficient scratch space: "+result.Detail)
			return
		}
	}

	job, err := s.store.NewJob(r.Context(), params)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("job submitted")
	s.writeJSON(w, http.StatusCreated, SubmitResponse{JobID: job.ID})
}

// buildJobParams validates a submission and produces the exact JSON payloads
// persisted on the job record. Every error returned here is user-facing.
func buildJobParams(req SubmitRequest) (queue.NewJobParams, error) {
	if strings.TrimSpace(req.SourcePath) == "" {
		return queue.NewJobParams{}, errors.New("source_path is required")
	}

	lines := make([]timing.Line, 0, len(req.Subtitles))
	for _, payload := range req.Subtitles {
		lines = append(lines, timing.Line{Text: payload.Text, Start: payload.Start, End: payload.End})
	}
	words := make([]timing.Word, 0, len(req.WordSegments))
	for _, payload := range req.WordSegments {
		words = append(words, timing.Word{Text: payload.Word, Start: payload.Start, End: payload.End})
	}
	if _, err := timing.NewIndex(lines, words); err != nil {
		return queue.NewJobParams{}, fmt.Errorf("invalid timing: %w", err)
	}

	spec := overlay.Default()
	if req.Overlay != nil {
		spec = *req.Overlay
	}
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return queue.NewJobParams{}, fmt.Errorf("invalid overlay: %w", err)
	}

	settings := render.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	settings.Normalize()
	if err := settings.Validate(); err != nil {
		return queue.NewJobParams{}, fmt.Errorf("invalid settings: %w", err)
	}

	subtitlesJSON, err := json.Marshal(req.Subtitles)
	if err != nil {
		return queue.NewJobParams{}, fmt.Errorf("encode subtitles: %w", err)
	}
	wordsJSON, err := json.Marshal(req.WordSegments)
	if err != nil {
		return queue.NewJobParams{}, fmt.Errorf("encode word segments: %w", err)
	}
	overlayJSON, err := json.Marshal(spec)
	if err != nil {
		return queue.NewJobParams{}, fmt.Errorf("encode overlay: %w", err)
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return queue.NewJobParams{}, fmt.Errorf("encode settings: %w", err)
	}

	return queue.NewJobParams{
		SourcePath:    strings.TrimSpace(req.SourcePath),
		AudioPath:     strings.TrimSpace(req.AudioPath),
		SubtitlesJSON: string(subtitlesJSON),
		WordsJSON:     string(wordsJSON),
		OverlayJSON:   string(overlayJSON),
		SettingsJSON:  string(settingsJSON),
	}, nil
}
