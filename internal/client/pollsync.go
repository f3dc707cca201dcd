package client

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundpipe/soundpipe/config"
	"github.com/soundpipe/soundpipe/internal/domain/model"
	apperrors "github.com/soundpipe/soundpipe/internal/errors"
)

// SyncFunc is notified after a poll tick that changed at least one tracked
// job. It receives a snapshot of every tracked job keyed by job id, terminal
// jobs included.
type SyncFunc func(jobs map[string]model.JobStatusResponse)

// PollSyncOptions groups constructor options for PollSync.
type PollSyncOptions struct {
	Client *Client // Required: API client
	Config config.ClientConfig
	Logger *slog.Logger     // Optional: structured logger
	Now    func() time.Time // Optional: injectable clock for tests
}

// PollSync keeps a local projection of tracked jobs in sync with the server
// by polling on a fixed interval. Jobs that reach a terminal state are
// retained indefinitely but stop being polled shortly after, so the steady
// state of a finished session issues no requests at all.
//
// A failed poll for one job never blocks the others; the failure is logged
// and that job is retried on the next tick. The only error that stops the
// loop is protocol drift, which cannot heal without a restart.
type PollSync struct {
	client *Client
	cfg    config.ClientConfig
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	jobs      map[string]*trackedJob
	observers []SyncFunc
}

type trackedJob struct {
	snapshot   model.JobStatusResponse
	terminalAt time.Time // zero until a terminal state was first seen
}

// NewPollSync creates a new PollSync.
func NewPollSync(opts PollSyncOptions) (*PollSync, error) {
	if opts.Client == nil {
		return nil, errors.New("Client is required")
	}
	cfg := opts.Config
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &PollSync{
		client: opts.Client,
		cfg:    cfg,
		logger: logger.With("component", "pollsync"),
		now:    nowFn,
		jobs:   make(map[string]*trackedJob),
	}, nil
}

// Track starts polling the job with the given id.
func (p *PollSync) Track(jobID string) {
	p.track(model.JobStatusResponse{JobID: jobID})
}

// TrackSubmission starts polling a job straight from its submission
// response, seeding the local projection with the accepted status.
func (p *PollSync) TrackSubmission(resp model.TranscribeResponse) {
	p.track(model.JobStatusResponse{JobID: resp.JobID, Status: resp.Status})
}

func (p *PollSync) track(snapshot model.JobStatusResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.jobs[snapshot.JobID]; ok {
		return
	}
	tj := &trackedJob{snapshot: snapshot}
	if snapshot.Status.Terminal() {
		tj.terminalAt = p.now()
	}
	p.jobs[snapshot.JobID] = tj
}

// Subscribe registers an observer notified after every tick that changed a
// tracked job. Observers run synchronously on the poll goroutine.
func (p *PollSync) Subscribe(fn SyncFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Jobs returns a snapshot of every tracked job keyed by id.
func (p *PollSync) Jobs() map[string]model.JobStatusResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *PollSync) snapshotLocked() map[string]model.JobStatusResponse {
	out := make(map[string]model.JobStatusResponse, len(p.jobs))
	for id, tj := range p.jobs {
		out[id] = tj.snapshot
	}
	return out
}

// Run polls until the context is cancelled or the protocol goes stale.
func (p *PollSync) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.SyncOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// SyncOnce reconciles every pollable job against the server in one pass.
// Transient and per-job failures are logged and absorbed; a stale protocol
// version is returned so the caller can stop the loop.
func (p *PollSync) SyncOnce(ctx context.Context) error {
	ids := p.pollableIDs()
	if len(ids) == 0 {
		return nil
	}

	results := make([]*model.JobStatusResponse, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			snap, err := p.client.GetJob(gctx, id)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Snapshots that did come back are applied even when the tick also hit
	// protocol drift; they were fetched before the gate tripped and the local
	// projection may as well keep them.
	p.apply(ids, results)

	var stale error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if apperrors.IsStaleVersion(err) {
			if stale == nil {
				stale = err
			}
			continue
		}
		p.logger.Warn("poll failed", "job_id", ids[i], "error", err)
	}
	return stale
}

// pollableIDs returns the ids still worth polling: everything non-terminal,
// plus terminal jobs within the grace window (their server-side state can
// still gain detail shortly after completion).
func (p *PollSync) pollableIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	ids := make([]string, 0, len(p.jobs))
	for id, tj := range p.jobs {
		if !tj.terminalAt.IsZero() && now.Sub(tj.terminalAt) > p.cfg.TerminalPollGrace {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// apply folds fetched snapshots into the projection and notifies observers
// once if anything changed.
func (p *PollSync) apply(ids []string, results []*model.JobStatusResponse) {
	p.mu.Lock()
	changed := false
	for i, id := range ids {
		snap := results[i]
		if snap == nil {
			continue
		}
		tj, ok := p.jobs[id]
		if !ok {
			continue
		}
		if !sameSnapshot(tj.snapshot, *snap) {
			tj.snapshot = *snap
			changed = true
		}
		if snap.Status.Terminal() && tj.terminalAt.IsZero() {
			tj.terminalAt = p.now()
		}
	}
	if !changed {
		p.mu.Unlock()
		return
	}
	observers := make([]SyncFunc, len(p.observers))
	copy(observers, p.observers)
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// sameSnapshot reports whether two job snapshots are observably identical.
func sameSnapshot(a, b model.JobStatusResponse) bool {
	return a.Status == b.Status &&
		a.Progress == b.Progress &&
		samePtr(a.Transcript, b.Transcript) &&
		samePtr(a.Error, b.Error) &&
		reflect.DeepEqual(a.Category, b.Category)
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RunVersionChecks re-checks protocol compatibility on a fixed interval,
// starting immediately. It returns once the gate goes stale or the context
// is cancelled. Transient failures are logged and retried on the next tick.
func (p *PollSync) RunVersionChecks(ctx context.Context) error {
	check := func() error {
		if _, err := p.client.GetVersion(ctx); err != nil {
			if apperrors.IsStaleVersion(err) {
				return err
			}
			p.logger.Warn("version check failed", "error", err)
		}
		return nil
	}

	if err := check(); err != nil {
		return err
	}

	ticker := time.NewTicker(p.cfg.VersionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := check(); err != nil {
				return err
			}
		}
	}
}
