package api

import (
	"chorus/internal/overlay"
	"chorus/internal/render"
)

// SubmitRequest is the submission payload for a new render job.
type SubmitRequest struct {
	SourcePath   string               `json:"source_path"`
	AudioPath    string               `json:"audio_path,omitempty"`
	Subtitles    []render.LinePayload `json:"subtitles"`
	WordSegments []render.WordPayload `json:"word_segments"`
	Overlay      *overlay.Spec        `json:"overlay,omitempty"`
	Settings     *render.Settings     `json:"settings,omitempty"`
}

// SubmitResponse carries the identifier of a created job.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// JobStatus is the external view of one job record.
type JobStatus struct {
	JobID           string  `json:"job_id"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
	StatusMessage   string  `json:"status_message"`
	OutputPath      string  `json:"output_path,omitempty"`
	ErrorDetail     string  `json:"error_detail,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// JobListResponse wraps the job listing endpoint.
type JobListResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

// CancelResponse reports whether a cancellation request took effect.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ProgressEvent is one live update pushed to a subscriber.
type ProgressEvent struct {
	JobID      string  `json:"job_id"`
	Percent    float64 `json:"percent"`
	Message    string  `json:"message"`
	Status     string  `json:"status"`
	OutputPath string  `json:"output_path,omitempty"`
}

// HealthCheck is one environment check in the health report.
type HealthCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// DependencyStatus reports one external binary in the health report.
type DependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status       string             `json:"status"`
	Checks       []HealthCheck      `json:"checks"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Queue        map[string]int     `json:"queue"`
}
