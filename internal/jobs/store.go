package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrJobNotFound is returned when updating an id that was never registered
	ErrJobNotFound = errors.New("job not found")

	// ErrTerminal is returned when updating a job that is already done or failed
	ErrTerminal = errors.New("job already finished")

	// ErrProgressRegression is returned when a processing update lowers progress
	ErrProgressRegression = errors.New("job progress cannot decrease")
)

// Store holds the status of every job submitted during the process lifetime
type Store struct {
	jobs map[string]Job
	mu   sync.RWMutex
}

// NewStore creates an empty job store
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]Job),
	}
}

// Register creates a queued record for id. Registering an existing id overwrites it.
func (s *Store) Register(id string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := Job{
		ID:        id,
		Status:    StatusQueued,
		Progress:  ProgressQueued,
		CreatedAt: time.Now(),
	}
	s.jobs[id] = job
	return job
}

// Update replaces the whole record of a registered, unfinished job.
// CreatedAt is kept from the registered record.
func (s *Store) Update(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.jobs[job.ID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	if current.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, job.ID, current.Status)
	}
	if job.Status == StatusProcessing && job.Progress < current.Progress {
		return fmt.Errorf("%w: %s %d -> %d", ErrProgressRegression, job.ID, current.Progress, job.Progress)
	}

	job.CreatedAt = current.CreatedAt
	s.jobs[job.ID] = job
	return nil
}

// Get retrieves a copy of a job record
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	return job, exists
}

// Lookup returns the job record, or the not_found sentinel for unknown ids
func (s *Store) Lookup(id string) Job {
	if job, ok := s.Get(id); ok {
		return job
	}
	return NotFound(id)
}

// List returns all jobs, oldest first
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// Len returns the number of registered jobs
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
