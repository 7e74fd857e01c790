// Package job defines the job record tracked through the processing pipeline
// and the result produced on completion.
package job

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"

	// StatusExpired is set only by the expiry sweep, never by the worker.
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// pipelineOrder maps each in-pipeline status to its position. Terminal states
// are handled separately since failed/expired are reachable from anywhere
// non-terminal.
var pipelineOrder = map[Status]int{
	StatusQueued:       0,
	StatusDownloading:  1,
	StatusTranscribing: 2,
	StatusAnalyzing:    3,
	StatusCompleted:    4,
}

// CanTransition reports whether moving from to next is a legal status change.
// Pipeline statuses only move forward; failed and expired are reachable from
// any non-terminal state; terminal states never change.
func CanTransition(from, next Status) bool {
	if from.Terminal() {
		return false
	}
	if next == StatusFailed || next == StatusExpired {
		return true
	}
	fo, ok := pipelineOrder[from]
	if !ok {
		return false
	}
	no, ok := pipelineOrder[next]
	if !ok {
		return false
	}
	return no > fo
}

// Job is one user-submitted video processing request. It is owned exclusively
// by the worker while processing; before and after it is read-only data.
type Job struct {
	ID         string    `json:"job_id"`
	Status     Status    `json:"status"`
	VideoURL   string    `json:"video_url"`
	VideoTitle string    `json:"video_title,omitempty"`
	Progress   string    `json:"progress,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Result     *Result   `json:"result,omitempty"`

	// Processing parameters carried alongside the record so a status query
	// shows what was requested.
	Language      string `json:"language,omitempty"`
	NumHighlights int    `json:"num_highlights,omitempty"`
}

// New creates a queued job for the given video URL.
func New(videoURL, language string, numHighlights int) *Job {
	return &Job{
		ID:            NewID(),
		Status:        StatusQueued,
		VideoURL:      videoURL,
		CreatedAt:     time.Now().UTC(),
		Language:      language,
		NumHighlights: numHighlights,
	}
}

// NewID returns a short opaque job identifier.
func NewID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Highlight is one extracted key moment.
type Highlight struct {
	Timestamp        string `json:"timestamp"`
	TimestampSeconds int    `json:"timestamp_seconds"`
	Title            string `json:"title"`
	Description      string `json:"description"`
}

// Result is the durable output of a completed job. It is created once and is
// immutable; it is persisted independently of the job record so it survives
// job expiry.
type Result struct {
	JobID           string      `json:"job_id"`
	VideoID         string      `json:"video_id"`
	VideoURL        string      `json:"video_url"`
	VideoTitle      string      `json:"video_title"`
	DurationSeconds int         `json:"duration_seconds"`
	Highlights      []Highlight `json:"highlights"`
	Summary         string      `json:"summary"`
	TranscriptKey   string      `json:"transcript_key"`
	ProcessedAt     time.Time   `json:"processed_at"`
}
