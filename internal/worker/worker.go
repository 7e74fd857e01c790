// Package worker runs the single-consumer processing loop. Jobs move through
// downloading, transcribing and analyzing strictly one at a time; each stage
// change is persisted before the stage runs so a crash leaves an accurate
// record behind.
package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/artifact"
	"github.com/ViktorBarzin/yt-highlights/internal/extract"
	"github.com/ViktorBarzin/yt-highlights/internal/job"
	"github.com/ViktorBarzin/yt-highlights/internal/ledger"
	"github.com/ViktorBarzin/yt-highlights/internal/media"
	"github.com/ViktorBarzin/yt-highlights/internal/queue"
	"github.com/ViktorBarzin/yt-highlights/internal/store"
	"github.com/ViktorBarzin/yt-highlights/internal/transcribe"
)

// Downloader fetches video metadata and audio.
type Downloader interface {
	DownloadAudio(ctx context.Context, videoURL string) (media.Info, string, error)
}

// Transcriber converts an audio file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) ([]transcribe.Segment, error)
}

// Extractor distills segments into highlights.
type Extractor interface {
	Extract(ctx context.Context, segments []transcribe.Segment, videoTitle string, numHighlights int) (extract.Output, error)
}

// Recorder marks a video as processed in the ledger.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) error
}

// Notifier announces a completed job. Nil disables notifications.
type Notifier interface {
	NotifyCompleted(ctx context.Context, result *job.Result) error
}

// Worker consumes the queue and drives each job through the pipeline.
type Worker struct {
	store       store.Store
	queue       *queue.Queue
	downloader  Downloader
	transcriber Transcriber
	extractor   Extractor
	artifacts   artifact.Store
	recorder    Recorder
	notifier    Notifier

	done chan struct{}
}

// New wires a worker. notifier may be nil.
func New(s store.Store, q *queue.Queue, d Downloader, t Transcriber, e Extractor, a artifact.Store, r Recorder, n Notifier) *Worker {
	return &Worker{
		store:       s,
		queue:       q,
		downloader:  d,
		transcriber: t,
		extractor:   e,
		artifacts:   a,
		recorder:    r,
		notifier:    n,
		done:        make(chan struct{}),
	}
}

// Done is closed when the loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Run consumes the queue until it is closed and drained or ctx is cancelled.
// Job failures never stop the loop.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	log.Info().Msg("Worker started")

	for {
		item, ok := w.queue.Dequeue(ctx)
		if !ok {
			log.Info().Msg("Worker stopped")
			return
		}
		if err := w.process(ctx, item); err != nil {
			log.Error().Err(err).Str("jobId", item.JobID).Msg("Job failed")
			w.markFailed(item.JobID, err)
		}
	}
}

// setStatus advances the job record, refusing illegal transitions.
func (w *Worker) setStatus(ctx context.Context, jobID string, next job.Status, progress string) error {
	return w.store.Update(ctx, jobID, func(j *job.Job) {
		if !job.CanTransition(j.Status, next) {
			log.Warn().
				Str("jobId", jobID).
				Str("from", string(j.Status)).
				Str("to", string(next)).
				Msg("Refusing illegal status transition")
			return
		}
		j.Status = next
		j.Progress = progress
	})
}

// markFailed records the failure reason. Uses a fresh context so a cancelled
// pipeline context still lets the record be written.
func (w *Worker) markFailed(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := w.store.Update(ctx, jobID, func(j *job.Job) {
		if j.Status.Terminal() {
			return
		}
		j.Status = job.StatusFailed
		j.Error = cause.Error()
	})
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to persist job failure")
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) error {
	log.Info().Str("jobId", item.JobID).Str("url", item.VideoURL).Msg("Processing job")

	if err := w.setStatus(ctx, item.JobID, job.StatusDownloading, "Downloading audio"); err != nil {
		return fmt.Errorf("mark downloading: %w", err)
	}
	info, audioPath, err := w.downloader.DownloadAudio(ctx, item.VideoURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	// Scratch audio is deleted whatever happens next.
	defer func() {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", audioPath).Msg("Failed to delete scratch audio")
		}
	}()

	err = w.store.Update(ctx, item.JobID, func(j *job.Job) {
		if job.CanTransition(j.Status, job.StatusTranscribing) {
			j.Status = job.StatusTranscribing
			j.Progress = "Transcribing audio"
		}
		j.VideoTitle = info.Title
	})
	if err != nil {
		return fmt.Errorf("mark transcribing: %w", err)
	}

	segments, err := w.transcriber.Transcribe(ctx, audioPath, item.Language)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	// The transcript is persisted before analysis so a completed result
	// always references an existing document.
	transcript := &artifact.Transcript{
		JobID:    item.JobID,
		VideoID:  info.ID,
		Language: item.Language,
		Segments: segments,
	}
	if err := w.artifacts.PutTranscript(ctx, transcript); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}

	if err := w.setStatus(ctx, item.JobID, job.StatusAnalyzing, "Extracting highlights"); err != nil {
		return fmt.Errorf("mark analyzing: %w", err)
	}
	output, err := w.extractor.Extract(ctx, segments, info.Title, item.NumHighlights)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	result := &job.Result{
		JobID:           item.JobID,
		VideoID:         info.ID,
		VideoURL:        item.VideoURL,
		VideoTitle:      info.Title,
		DurationSeconds: int(info.Duration),
		Highlights:      output.Highlights,
		Summary:         output.Summary,
		TranscriptKey:   "transcripts/" + info.ID + ".json.zst",
		ProcessedAt:     time.Now().UTC(),
	}
	if err := w.artifacts.PutResult(ctx, result); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	if err := w.recorder.Record(ctx, ledger.Entry{
		VideoID:     info.ID,
		JobID:       item.JobID,
		VideoTitle:  info.Title,
		ProcessedAt: result.ProcessedAt,
	}); err != nil {
		log.Warn().Err(err).Str("jobId", item.JobID).Msg("Failed to record ledger entry")
	}

	err = w.store.Update(ctx, item.JobID, func(j *job.Job) {
		if !job.CanTransition(j.Status, job.StatusCompleted) {
			return
		}
		j.Status = job.StatusCompleted
		j.Progress = ""
		j.Result = result
	})
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	if w.notifier != nil {
		if err := w.notifier.NotifyCompleted(ctx, result); err != nil {
			log.Warn().Err(err).Str("jobId", item.JobID).Msg("Slack notification failed")
		}
	}

	log.Info().
		Str("jobId", item.JobID).
		Str("videoId", info.ID).
		Int("highlights", len(result.Highlights)).
		Msg("Job completed")
	return nil
}
