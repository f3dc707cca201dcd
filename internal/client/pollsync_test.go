package client

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundpipe/soundpipe/config"
	"github.com/soundpipe/soundpipe/internal/domain/model"
	apperrors "github.com/soundpipe/soundpipe/internal/errors"
)

// jobFixture is a mutable server-side job state the stub serves from.
type jobFixture struct {
	mu   sync.Mutex
	jobs map[string]model.JobStatusResponse
}

func (f *jobFixture) set(job model.JobStatusResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.JobID] = job
}

func (f *jobFixture) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		job, ok := f.jobs[r.PathValue("job_id")]
		f.mu.Unlock()
		if !ok {
			writeJSON(t, w, http.StatusNotFound,
				map[string]string{"error": "not_found", "message": "no such job"})
			return
		}
		writeJSON(t, w, http.StatusOK, job)
	}
}

func newSyncFixture(t *testing.T) (*PollSync, *jobFixture, *stubServer, *fakeClock) {
	t.Helper()
	fixture := &jobFixture{jobs: make(map[string]model.JobStatusResponse)}
	srv := newStubServer(t, map[string]http.HandlerFunc{
		"GET /jobs/{job_id}": fixture.handler(t),
	})
	c, _ := newClient(t, srv.URL)

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	ps, err := NewPollSync(PollSyncOptions{
		Client: c,
		Config: config.ClientConfig{TerminalPollGrace: 30 * time.Second},
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return ps, fixture, srv, clock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func strPtr(s string) *string { return &s }

func TestSyncOnceWithNothingTrackedIssuesNoRequests(t *testing.T) {
	ps, _, srv, _ := newSyncFixture(t)

	require.NoError(t, ps.SyncOnce(context.Background()))
	assert.Zero(t, srv.requests.Load())
}

func TestSyncOnceUpdatesProjectionAndNotifies(t *testing.T) {
	ps, fixture, _, _ := newSyncFixture(t)
	fixture.set(model.JobStatusResponse{
		JobID: "job-1", Status: model.JobStatusProcessing, Progress: 0.5,
		Transcript: strPtr("partial"),
	})

	var notified []map[string]model.JobStatusResponse
	ps.Subscribe(func(jobs map[string]model.JobStatusResponse) {
		notified = append(notified, jobs)
	})

	ps.TrackSubmission(model.TranscribeResponse{JobID: "job-1", Status: model.JobStatusQueued})
	require.NoError(t, ps.SyncOnce(context.Background()))

	require.Len(t, notified, 1)
	got := notified[0]["job-1"]
	assert.Equal(t, model.JobStatusProcessing, got.Status)
	assert.Equal(t, 0.5, got.Progress)
	require.NotNil(t, got.Transcript)
	assert.Equal(t, "partial", *got.Transcript)

	// An identical follow-up tick changes nothing and stays silent.
	require.NoError(t, ps.SyncOnce(context.Background()))
	assert.Len(t, notified, 1)
}

func TestSyncOnceIsolatesPerJobFailures(t *testing.T) {
	ps, fixture, _, _ := newSyncFixture(t)
	fixture.set(model.JobStatusResponse{JobID: "healthy", Status: model.JobStatusCompleted, Progress: 1.0})

	ps.Track("healthy")
	ps.Track("vanished") // the server has never heard of this one

	require.NoError(t, ps.SyncOnce(context.Background()))

	jobs := ps.Jobs()
	assert.Equal(t, model.JobStatusCompleted, jobs["healthy"].Status)
	// The failed job stays tracked with its last known state.
	assert.Contains(t, jobs, "vanished")
	assert.Equal(t, model.JobStatus(""), jobs["vanished"].Status)
}

func TestTerminalJobsStopBeingPolledAfterGrace(t *testing.T) {
	ps, fixture, srv, clock := newSyncFixture(t)
	fixture.set(model.JobStatusResponse{JobID: "job-1", Status: model.JobStatusCompleted, Progress: 1.0})

	ps.Track("job-1")
	require.NoError(t, ps.SyncOnce(context.Background()))
	require.Equal(t, model.JobStatusCompleted, ps.Jobs()["job-1"].Status)

	// Within the grace window the job is still polled.
	clock.Advance(10 * time.Second)
	before := srv.requests.Load()
	require.NoError(t, ps.SyncOnce(context.Background()))
	assert.Equal(t, before+1, srv.requests.Load())

	// Past the grace window polling stops, but the job is retained.
	clock.Advance(30 * time.Second)
	before = srv.requests.Load()
	require.NoError(t, ps.SyncOnce(context.Background()))
	assert.Equal(t, before, srv.requests.Load())
	assert.Contains(t, ps.Jobs(), "job-1")
}

func TestTrackIsIdempotent(t *testing.T) {
	ps, fixture, srv, _ := newSyncFixture(t)
	fixture.set(model.JobStatusResponse{JobID: "job-1", Status: model.JobStatusQueued})

	ps.Track("job-1")
	ps.Track("job-1")
	ps.TrackSubmission(model.TranscribeResponse{JobID: "job-1", Status: model.JobStatusQueued})

	require.NoError(t, ps.SyncOnce(context.Background()))
	assert.Equal(t, int64(1), srv.requests.Load())
	assert.Len(t, ps.Jobs(), 1)
}

func TestSyncOnceKeepsFetchedSnapshotsWhenDriftHits(t *testing.T) {
	// One job answers normally, the other reports protocol drift. The tick
	// must surface the drift but still fold in the snapshot it already paid
	// for.
	srv := newStubServer(t, map[string]http.HandlerFunc{
		"GET /jobs/{job_id}": func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("job_id") == "drifting" {
				writeJSON(t, w, http.StatusUpgradeRequired,
					map[string]string{"error": "stale_version", "message": "upgrade required"})
				return
			}
			writeJSON(t, w, http.StatusOK, model.JobStatusResponse{
				JobID: "healthy", Status: model.JobStatusProcessing, Progress: 0.5,
			})
		},
	})
	c, _ := newClient(t, srv.URL)
	ps, err := NewPollSync(PollSyncOptions{Client: c})
	require.NoError(t, err)

	ps.Track("healthy")
	ps.Track("drifting")

	err = ps.SyncOnce(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsStaleVersion(err))

	got := ps.Jobs()["healthy"]
	assert.Equal(t, model.JobStatusProcessing, got.Status)
	assert.Equal(t, 0.5, got.Progress)
}

func TestSyncOnceStopsOnProtocolDrift(t *testing.T) {
	ps, fixture, srv, _ := newSyncFixture(t)
	fixture.set(model.JobStatusResponse{JobID: "job-1", Status: model.JobStatusQueued})
	ps.Track("job-1")

	// The server upgrades between ticks.
	srv.version.Store("2.0.0")

	err := ps.SyncOnce(context.Background())
	require.Error(t, err)

	// The next tick short-circuits locally before any request is sent.
	before := srv.requests.Load()
	err = ps.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, before, srv.requests.Load())
}
