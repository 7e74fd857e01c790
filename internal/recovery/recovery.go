// Package recovery reconciles persisted state on startup. Jobs interrupted
// by a crash or restart are failed rather than resumed: the pipeline holds
// no mid-stage checkpoints worth recovering, so asking for a resubmit is the
// honest outcome.
package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
	"github.com/ViktorBarzin/yt-highlights/internal/ledger"
	"github.com/ViktorBarzin/yt-highlights/internal/store"
)

const restartMessage = "service restarted - please resubmit"

// LedgerRetention is how long processed-video entries and their artifacts
// are kept.
const LedgerRetention = 24 * time.Hour

// Pruner ages out ledger entries. Satisfied by the ledger.
type Pruner interface {
	Prune(ctx context.Context, maxAge time.Duration, artifacts ledger.ArtifactDeleter) ([]string, error)
}

// Run performs the startup sweep: expire stale jobs, prune the processed
// ledger and fail every job a previous process left mid-pipeline. Individual
// record errors are logged; Run fails only when the store cannot be listed.
func Run(ctx context.Context, s store.Store, pruner Pruner, artifacts ledger.ArtifactDeleter) error {
	expired, err := store.ExpireStale(ctx, s, store.JobExpiry)
	if err != nil {
		return err
	}
	if expired > 0 {
		log.Info().Int("count", expired).Msg("Expired stale jobs on startup")
	}

	if pruner != nil {
		if _, err := pruner.Prune(ctx, LedgerRetention, artifacts); err != nil {
			log.Warn().Err(err).Msg("Ledger prune failed on startup")
		}
	}

	failed, err := failInterrupted(ctx, s)
	if err != nil {
		return err
	}
	if failed > 0 {
		log.Info().Int("count", failed).Msg("Failed interrupted jobs on startup")
	}
	return nil
}

func failInterrupted(ctx context.Context, s store.Store) (int, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, j := range jobs {
		if j.Status.Terminal() {
			continue
		}
		err := s.Update(ctx, j.ID, func(rec *job.Job) {
			if rec.Status.Terminal() {
				return
			}
			rec.Status = job.StatusFailed
			rec.Error = restartMessage
		})
		if err != nil {
			log.Warn().Err(err).Str("jobId", j.ID).Msg("Failed to reconcile interrupted job")
			continue
		}
		failed++
	}
	return failed, nil
}
