// Package data provides the in-memory stores backing the job pipeline. Stores
// live for the process lifetime; nothing is persisted across restarts.
package data

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/soundpipe/soundpipe/internal/errors"
	"github.com/soundpipe/soundpipe/internal/domain/model"
)

// JobStore is the authoritative registry of jobs, keyed by job id and indexed
// by owning user. Reads return snapshots so a reader never observes a
// partially-updated job. Update serializes mutations per store; the processing
// goroutine is the sole writer for a given job id after creation.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[string]*model.Job
	byOwner map[string][]string // owner id -> job ids, insertion order
	now     func() time.Time
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:    make(map[string]*model.Job),
		byOwner: make(map[string][]string),
		now:     time.Now,
	}
}

// CreateJobParams groups the fields needed to create a job.
type CreateJobParams struct {
	OwnerID     string
	Status      model.JobStatus
	Fingerprint string
	// Result, when set, is materialized on the job under the same lock that
	// makes it visible, so no reader can observe the job completed but empty.
	Result *model.AnalysisResult
}

// Create stores a new job with a fresh unique id and returns its snapshot.
func (s *JobStore) Create(params CreateJobParams) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &model.Job{
		ID:                 uuid.NewString(),
		OwnerID:            params.OwnerID,
		Status:             params.Status,
		ContentFingerprint: params.Fingerprint,
		CreatedAt:          s.now(),
	}
	if params.Result != nil {
		transcript := params.Result.Transcript
		category := params.Result.Category
		job.Transcript = &transcript
		job.Category = &category
		job.Progress = 1.0
	}
	s.jobs[job.ID] = job
	s.byOwner[params.OwnerID] = append(s.byOwner[params.OwnerID], job.ID)
	return job.Clone()
}

// Get returns a snapshot of the job with the given id. Unknown ids yield a
// NotFound error, distinct from a job that exists but errored.
func (s *JobStore) Get(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, apperrors.NotFoundf("job %s not found", id)
	}
	return job.Clone(), nil
}

// ListByOwner returns snapshots of the owner's jobs, newest first.
func (s *JobStore) ListByOwner(ownerID string) []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	out := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := s.jobs[id]; ok {
			out = append(out, job.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of jobs in the store.
func (s *JobStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Update applies mutate to the job under the store lock and returns the
// resulting snapshot. The mutation is rejected if it would move status
// backward or decrease progress, keeping the job lifecycle invariants intact
// even against a misbehaving caller.
func (s *JobStore) Update(id string, mutate func(*model.Job)) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, apperrors.NotFoundf("job %s not found", id)
	}

	next := job.Clone()
	mutate(&next)

	if next.ID != job.ID {
		return model.Job{}, apperrors.Validation("job id is immutable")
	}
	if !job.Status.CanTransitionTo(next.Status) {
		return model.Job{}, apperrors.Validationf(
			"illegal status transition %s -> %s for job %s", job.Status, next.Status, id)
	}
	if next.Progress < job.Progress {
		return model.Job{}, apperrors.Validationf(
			"progress may not decrease (%.2f -> %.2f) for job %s", job.Progress, next.Progress, id)
	}

	*job = next
	return job.Clone(), nil
}
