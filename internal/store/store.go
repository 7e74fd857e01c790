// Package store persists job records in a key-value store behind a narrow
// interface so the backend is swappable without touching pipeline logic.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
)

// ErrNotFound is returned when a job id has no record.
var ErrNotFound = errors.New("job not found")

// Store is the durable job record store.
type Store interface {
	// Put creates or overwrites the record for j.ID.
	Put(ctx context.Context, j *job.Job) error

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*job.Job, error)

	// Update applies mutate to the stored record and writes it back.
	// Returns ErrNotFound for an unknown id; it never creates a record.
	Update(ctx context.Context, id string, mutate func(*job.Job)) error

	// Delete removes the record for id.
	Delete(ctx context.Context, id string) error

	// List returns every stored record. Entries that fail to parse are
	// skipped with a warning, never aborting the whole listing.
	List(ctx context.Context) ([]*job.Job, error)
}

// JobExpiry is how long a non-terminal job may exist before the sweep
// expires it.
const JobExpiry = 24 * time.Hour

// ExpireStale transitions every non-terminal job older than maxAge to
// expired and returns the number of jobs changed. Terminal jobs are skipped,
// so calling it twice does not double-count. Per-record storage errors are
// logged and skipped so one bad record never aborts the sweep.
func ExpireStale(ctx context.Context, s Store, maxAge time.Duration) (int, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs for expiry sweep: %w", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	expired := 0

	for _, j := range jobs {
		if j.Status.Terminal() {
			continue
		}
		if j.CreatedAt.IsZero() || !j.CreatedAt.Before(cutoff) {
			continue
		}

		id := j.ID
		msg := fmt.Sprintf("job expired after %s", maxAge)
		if err := s.Update(ctx, id, func(u *job.Job) {
			u.Status = job.StatusExpired
			u.Error = msg
			u.Progress = ""
		}); err != nil {
			log.Warn().Err(err).Str("jobId", id).Msg("Failed to expire stale job, skipping")
			continue
		}
		expired++
		log.Info().Str("jobId", id).Time("createdAt", j.CreatedAt).Msg("Expired stale job")
	}

	return expired, nil
}
