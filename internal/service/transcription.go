// Package service provides the business logic layer of the soundpipe job system.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundpipe/soundpipe/config"
	"github.com/soundpipe/soundpipe/internal/cache"
	"github.com/soundpipe/soundpipe/internal/core"
	"github.com/soundpipe/soundpipe/internal/data"
	"github.com/soundpipe/soundpipe/internal/domain/model"
	apperrors "github.com/soundpipe/soundpipe/internal/errors"
)

// Progress checkpoints emitted while a job moves through the pipeline.
const (
	progressProcessing  = 0.1
	progressTranscribed = 0.5
	progressProviderSet = 0.7
	progressCategorized = 0.9
	progressDone        = 1.0
)

// TranscriptionServiceOptions groups dependencies for TranscriptionService.
type TranscriptionServiceOptions struct {
	Jobs     *data.JobStore                     // Required: job registry
	Users    *data.UserStore                    // Required: user registry
	Results  *cache.Cache[model.AnalysisResult] // Required: content-addressable result cache
	Prefs    *cache.Cache[model.Provider]       // Required: user provider-preference cache
	Analyzer core.Analyzer                      // Required: analysis collaborators
	Config   config.JobsConfig
	Logger   *slog.Logger // Optional: structured logger
}

// TranscriptionService orchestrates a submission end-to-end: fingerprint the
// audio, consult the content cache, and either synthesize an already-completed
// job (cache hit) or create a queued job and drive it asynchronously through
// the analysis collaborators. The processing goroutine is the sole writer for
// its job id; the content cache's single-flight guarantee is the only
// cross-job synchronization point.
type TranscriptionService struct {
	jobs     *data.JobStore
	users    *data.UserStore
	results  *cache.Cache[model.AnalysisResult]
	prefs    *cache.Cache[model.Provider]
	analyzer core.Analyzer
	config   config.JobsConfig
	logger   *slog.Logger
}

// NewTranscriptionService constructs a new TranscriptionService.
func NewTranscriptionService(opts TranscriptionServiceOptions) (*TranscriptionService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Users == nil {
		return nil, errors.New("UserStore is required")
	}
	if opts.Results == nil || opts.Prefs == nil {
		return nil, errors.New("result and preference caches are required")
	}
	if opts.Analyzer == nil {
		return nil, errors.New("Analyzer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TranscriptionService{
		jobs:     opts.Jobs,
		users:    opts.Users,
		results:  opts.Results,
		prefs:    opts.Prefs,
		analyzer: opts.Analyzer,
		config:   opts.Config,
		logger:   logger.With("component", "transcription_service"),
	}, nil
}

// Submit accepts an audio payload for the given owner and returns the job
// immediately. The caller never waits for analysis; status is discovered by
// polling the read path.
func (s *TranscriptionService) Submit(ctx context.Context, audio []byte, ownerID string) (model.Job, error) {
	if len(audio) == 0 {
		return model.Job{}, apperrors.Validation("audio payload is required")
	}

	fingerprint := cache.Fingerprint(audio)

	if result, ok := s.results.Lookup(fingerprint); ok {
		job := s.completedFromCache(ownerID, fingerprint, result)
		s.logger.InfoContext(ctx, "job served from cache",
			"job_id", job.ID, "owner_id", ownerID, "fingerprint", fingerprint)
		return job, nil
	}

	job := s.jobs.Create(data.CreateJobParams{
		OwnerID:     ownerID,
		Status:      model.JobStatusQueued,
		Fingerprint: fingerprint,
	})
	s.logger.InfoContext(ctx, "job queued",
		"job_id", job.ID, "owner_id", ownerID, "fingerprint", fingerprint)

	go s.process(job.ID, ownerID, fingerprint, audio)

	return job, nil
}

// GetJob returns a snapshot of the job with the given id.
func (s *TranscriptionService) GetJob(_ context.Context, id string) (model.Job, error) {
	return s.jobs.Get(id)
}

// ListJobs returns the owner's jobs, newest first.
func (s *TranscriptionService) ListJobs(_ context.Context, ownerID string) []model.Job {
	return s.jobs.ListByOwner(ownerID)
}

// completedFromCache synthesizes a job already in completed state from a
// cached analysis result. The store materializes the result in the same
// critical section that makes the job visible, so a concurrent reader never
// sees it completed without a transcript.
func (s *TranscriptionService) completedFromCache(
	ownerID, fingerprint string,
	result model.AnalysisResult,
) model.Job {
	return s.jobs.Create(data.CreateJobParams{
		OwnerID:     ownerID,
		Status:      model.JobStatusCompleted,
		Fingerprint: fingerprint,
		Result:      &result,
	})
}

// process drives one queued job to a terminal state. It runs as an
// independent goroutine and is the only writer for jobID.
func (s *TranscriptionService) process(jobID, ownerID, fingerprint string, audio []byte) {
	ctx := context.Background()
	if s.config.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.AnalyzeTimeout)
		defer cancel()
	}

	s.updateJob(ctx, jobID, func(j *model.Job) {
		j.Status = model.JobStatusProcessing
		j.Progress = progressProcessing
	})

	result, hit, err := s.results.GetOrCompute(ctx, fingerprint, func(ctx context.Context) (model.AnalysisResult, error) {
		return s.analyze(ctx, jobID, ownerID, audio)
	})
	if err != nil {
		s.failJob(ctx, jobID, err)
		return
	}

	s.updateJob(ctx, jobID, func(j *model.Job) {
		j.Status = model.JobStatusCompleted
		applyResult(j, result)
	})
	s.logger.InfoContext(ctx, "job completed",
		"job_id", jobID, "owner_id", ownerID, "cache_hit", hit)
}

// analyze runs the collaborator pipeline for a single computation. Only the
// job that initiated the computation receives the intermediate checkpoints;
// jobs attached to the same flight jump straight to the terminal update.
func (s *TranscriptionService) analyze(
	ctx context.Context,
	jobID, ownerID string,
	audio []byte,
) (model.AnalysisResult, error) {
	transcript, err := s.analyzer.Transcribe(ctx, audio)
	if err != nil {
		return model.AnalysisResult{}, apperrors.Wrap(err, apperrors.ErrCodeCollaborator, "transcription failed")
	}
	s.updateJob(ctx, jobID, func(j *model.Job) {
		j.Progress = progressTranscribed
		j.Transcript = &transcript
	})

	provider, err := s.resolveProvider(ctx, ownerID)
	if err != nil {
		return model.AnalysisResult{}, apperrors.Wrap(err, apperrors.ErrCodeCollaborator, "provider lookup failed")
	}
	s.updateJob(ctx, jobID, func(j *model.Job) {
		j.Progress = progressProviderSet
	})

	category, err := s.analyzer.Categorize(ctx, transcript, provider)
	if err != nil {
		return model.AnalysisResult{}, apperrors.Wrap(err, apperrors.ErrCodeCollaborator, "categorization failed")
	}
	s.updateJob(ctx, jobID, func(j *model.Job) {
		j.Progress = progressCategorized
	})

	return model.AnalysisResult{Transcript: transcript, Category: category}, nil
}

// resolveProvider returns the owner's preferred provider, fronting the
// expensive lookup with the preference cache.
func (s *TranscriptionService) resolveProvider(ctx context.Context, ownerID string) (model.Provider, error) {
	provider, _, err := s.prefs.GetOrCompute(ctx, ownerID, func(ctx context.Context) (model.Provider, error) {
		return s.analyzer.LookupProvider(ctx, ownerID)
	})
	return provider, err
}

// failJob marks the job as terminally errored. A single attempt per
// submission: the failure is recorded, never retried.
func (s *TranscriptionService) failJob(ctx context.Context, jobID string, cause error) {
	msg := cause.Error()
	s.updateJob(ctx, jobID, func(j *model.Job) {
		j.Status = model.JobStatusError
		j.ErrorMessage = &msg
		j.Transcript = nil
		j.Category = nil
	})
	s.logger.ErrorContext(ctx, "job failed", "job_id", jobID, "error", cause)
}

func (s *TranscriptionService) updateJob(ctx context.Context, jobID string, mutate func(*model.Job)) {
	if _, err := s.jobs.Update(jobID, mutate); err != nil {
		s.logger.ErrorContext(ctx, "job update rejected", "job_id", jobID, "error", err)
	}
}

// applyResult copies an analysis result onto a job and marks it fully done.
func applyResult(j *model.Job, result model.AnalysisResult) {
	transcript := result.Transcript
	category := result.Category
	j.Transcript = &transcript
	j.Category = &category
	j.ErrorMessage = nil
	j.Progress = progressDone
}
