package store

import (
	"context"
	"sync"

	"github.com/ViktorBarzin/yt-highlights/internal/job"
)

// MemoryStore is an in-memory Store used by tests. Records are deep-copied on
// the way in and out so callers never share mutable state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*job.Job)}
}

func copyJob(j *job.Job) *job.Job {
	c := *j
	if j.Result != nil {
		r := *j.Result
		r.Highlights = append([]job.Highlight(nil), j.Result.Highlights...)
		c.Result = &r
	}
	return &c
}

func (s *MemoryStore) Put(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = copyJob(j)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(j), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, mutate func(*job.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	c := copyJob(j)
	mutate(c)
	s.jobs[id] = c
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, copyJob(j))
	}
	return jobs, nil
}
