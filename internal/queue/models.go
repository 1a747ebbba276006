package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a render job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusReady      Status = "ready"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// InterruptedReason is the error message set when in-flight jobs are failed
// after a daemon restart. Resumption is deliberately not attempted.
const InterruptedReason = "interrupted by restart"

var allStatuses = []Status{
	StatusQueued,
	StatusReady,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// Job represents a render request persisted in SQLite. The submission
// payload (subtitles, word spans, overlay spec, render settings) is stored
// as JSON exactly as validated at submission time.
type Job struct {
	ID              string
	Status          Status
	ProgressPercent float64
	ProgressMessage string
	SourcePath      string
	AudioPath       string
	SubtitlesJSON   string
	WordsJSON       string
	OverlayJSON     string
	SettingsJSON    string
	OutputPath      string
	ErrorMessage    string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is absorbing.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsTerminal reports whether the job has reached an absorbing state.
func (j Job) IsTerminal() bool {
	return IsTerminal(j.Status)
}

// IsImageSource reports whether the job was submitted as image+audio and
// needs a synthetic source video materialized before extraction.
func (j Job) IsImageSource() bool {
	return strings.TrimSpace(j.AudioPath) != ""
}
