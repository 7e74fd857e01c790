// Package artifact persists per-video outputs: the highlights result document
// and the full transcript. The filesystem backend is authoritative; an S3
// backend can mirror artifacts off-host.
package artifact

import (
	"context"
	"errors"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
	"github.com/ViktorBarzin/yt-highlights/internal/transcribe"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Transcript is the persisted transcript document for one video. Kept so a
// completed job's transcript can be re-analyzed without re-downloading.
type Transcript struct {
	JobID    string               `json:"job_id"`
	VideoID  string               `json:"video_id"`
	Language string               `json:"language"`
	Segments []transcribe.Segment `json:"segments"`
}

// Store persists and retrieves artifacts keyed by video id, independently of
// the job store, so results outlive job-record expiry.
type Store interface {
	PutResult(ctx context.Context, result *job.Result) error
	GetResult(ctx context.Context, videoID string) (*job.Result, error)
	DeleteResult(ctx context.Context, videoID string) error

	PutTranscript(ctx context.Context, t *Transcript) error
	GetTranscript(ctx context.Context, videoID string) (*Transcript, error)
	DeleteTranscript(ctx context.Context, videoID string) error
}
