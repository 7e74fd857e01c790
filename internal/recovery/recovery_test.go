package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
	"github.com/ViktorBarzin/yt-highlights/internal/ledger"
	"github.com/ViktorBarzin/yt-highlights/internal/store"
)

type fakePruner struct {
	calls  int
	maxAge time.Duration
}

func (f *fakePruner) Prune(_ context.Context, maxAge time.Duration, _ ledger.ArtifactDeleter) ([]string, error) {
	f.calls++
	f.maxAge = maxAge
	return nil, nil
}

func putJob(t *testing.T, s store.Store, status job.Status, age time.Duration) *job.Job {
	t.Helper()
	j := job.New("https://www.youtube.com/watch?v=x", "en", 5)
	j.Status = status
	j.CreatedAt = time.Now().UTC().Add(-age)
	if err := s.Put(context.Background(), j); err != nil {
		t.Fatalf("put: %v", err)
	}
	return j
}

func TestRun_FailsInterruptedJobs(t *testing.T) {
	s := store.NewMemoryStore()
	interrupted := putJob(t, s, job.StatusTranscribing, time.Minute)
	queued := putJob(t, s, job.StatusQueued, time.Minute)
	completed := putJob(t, s, job.StatusCompleted, time.Minute)

	pruner := &fakePruner{}
	if err := Run(context.Background(), s, pruner, nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, id := range []string{interrupted.ID, queued.ID} {
		got, err := s.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.Status != job.StatusFailed {
			t.Errorf("job %s status = %s, want failed", id, got.Status)
		}
		if got.Error != restartMessage {
			t.Errorf("job %s error = %q, want restart message", id, got.Error)
		}
	}

	got, _ := s.Get(context.Background(), completed.ID)
	if got.Status != job.StatusCompleted {
		t.Errorf("completed job must be untouched, got %s", got.Status)
	}

	if pruner.calls != 1 || pruner.maxAge != LedgerRetention {
		t.Errorf("pruner called %d times with %v", pruner.calls, pruner.maxAge)
	}
}

func TestRun_ExpiresStaleBeforeFailing(t *testing.T) {
	s := store.NewMemoryStore()
	stale := putJob(t, s, job.StatusQueued, store.JobExpiry+time.Hour)
	fresh := putJob(t, s, job.StatusQueued, time.Minute)

	if err := Run(context.Background(), s, &fakePruner{}, nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	gotStale, _ := s.Get(context.Background(), stale.ID)
	if gotStale.Status != job.StatusExpired {
		t.Errorf("stale job status = %s, want expired", gotStale.Status)
	}

	gotFresh, _ := s.Get(context.Background(), fresh.ID)
	if gotFresh.Status != job.StatusFailed {
		t.Errorf("fresh interrupted job status = %s, want failed", gotFresh.Status)
	}
}

func TestRun_IdempotentOnSecondStartup(t *testing.T) {
	s := store.NewMemoryStore()
	j := putJob(t, s, job.StatusAnalyzing, time.Minute)

	if err := Run(context.Background(), s, &fakePruner{}, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := Run(context.Background(), s, &fakePruner{}, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}

	got, _ := s.Get(context.Background(), j.ID)
	if got.Status != job.StatusFailed || got.Error != restartMessage {
		t.Errorf("job after two runs: status=%s error=%q", got.Status, got.Error)
	}
}
