package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/soundpipe/soundpipe/config"
	"github.com/soundpipe/soundpipe/internal/cache"
	"github.com/soundpipe/soundpipe/internal/data"
	"github.com/soundpipe/soundpipe/internal/domain/model"
	apperrors "github.com/soundpipe/soundpipe/internal/errors"
	"github.com/soundpipe/soundpipe/internal/mocks"
)

type fixture struct {
	svc     *TranscriptionService
	results *cache.Cache[model.AnalysisResult]
	prefs   *cache.Cache[model.Provider]
	jobs    *data.JobStore
}

func newFixture(t *testing.T, analyzer *mocks.MockAnalyzer, cfg config.JobsConfig) *fixture {
	t.Helper()

	jobs := data.NewJobStore()
	users := data.NewUserStore()
	results := cache.New[model.AnalysisResult](cache.Options{Name: "results"})
	prefs := cache.New[model.Provider](cache.Options{Name: "preferences"})

	svc, err := NewTranscriptionService(TranscriptionServiceOptions{
		Jobs:     jobs,
		Users:    users,
		Results:  results,
		Prefs:    prefs,
		Analyzer: analyzer,
		Config:   cfg,
	})
	require.NoError(t, err)

	return &fixture{svc: svc, results: results, prefs: prefs, jobs: jobs}
}

func expectAnalysis(analyzer *mocks.MockAnalyzer, transcript string, category model.CategoryResult) {
	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return(transcript, nil)
	analyzer.EXPECT().LookupProvider(gomock.Any(), gomock.Any()).Return(model.ProviderOpenAI, nil)
	analyzer.EXPECT().Categorize(gomock.Any(), transcript, model.ProviderOpenAI).Return(category, nil)
}

func waitTerminal(t *testing.T, f *fixture, jobID string) model.Job {
	t.Helper()
	var job model.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = f.svc.GetJob(context.Background(), jobID)
		return err == nil && job.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

var greetingCategory = model.CategoryResult{
	PrimaryTopic: "greeting",
	Sentiment:    model.SentimentNeutral,
	Keywords:     []string{"hello"},
	Confidence:   0.9,
	Summary:      "A short greeting.",
}

func TestSubmitRejectsEmptyAudio(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, mocks.NewMockAnalyzer(ctrl), config.JobsConfig{})

	_, err := f.svc.Submit(context.Background(), nil, "owner")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSubmitMissRunsPipelineToCompletion(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)
	expectAnalysis(analyzer, "hello world", greetingCategory)
	f := newFixture(t, analyzer, config.JobsConfig{})

	job, err := f.svc.Submit(context.Background(), []byte("audio-a"), "owner")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status, "submission is non-blocking")
	assert.Zero(t, job.Progress)

	done := waitTerminal(t, f, job.ID)
	assert.Equal(t, model.JobStatusCompleted, done.Status)
	assert.Equal(t, 1.0, done.Progress)
	require.NotNil(t, done.Transcript)
	assert.Equal(t, "hello world", *done.Transcript)
	require.NotNil(t, done.Category)
	assert.Equal(t, "greeting", done.Category.PrimaryTopic)
	assert.Nil(t, done.ErrorMessage)
}

func TestSequentialDedup(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)
	expectAnalysis(analyzer, "hello world", greetingCategory)
	f := newFixture(t, analyzer, config.JobsConfig{})
	ctx := context.Background()
	audio := []byte("identical-audio")

	first, err := f.svc.Submit(ctx, audio, "owner")
	require.NoError(t, err)
	firstDone := waitTerminal(t, f, first.ID)

	second, err := f.svc.Submit(ctx, audio, "owner")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, second.Status, "cache hit returns a completed job immediately")
	assert.Equal(t, 1.0, second.Progress)
	require.NotNil(t, second.Transcript)
	assert.Equal(t, *firstDone.Transcript, *second.Transcript)
	assert.Equal(t, firstDone.Category, second.Category)
	assert.NotEqual(t, firstDone.ID, second.ID, "each submission gets its own job")

	stats := f.results.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestConcurrentSubmissionsSingleFlight(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)

	release := make(chan struct{})
	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []byte) (string, error) {
			<-release
			return "hello world", nil
		}).Times(1)
	analyzer.EXPECT().LookupProvider(gomock.Any(), gomock.Any()).Return(model.ProviderAnthropic, nil).Times(1)
	analyzer.EXPECT().Categorize(gomock.Any(), "hello world", model.ProviderAnthropic).
		Return(greetingCategory, nil).Times(1)

	f := newFixture(t, analyzer, config.JobsConfig{})
	ctx := context.Background()
	audio := []byte("same-bytes")

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := f.svc.Submit(ctx, audio, "owner")
			assert.NoError(t, err)
			ids[i] = job.ID
		}()
	}
	wg.Wait()
	close(release)

	var transcripts []string
	for _, id := range ids {
		job := waitTerminal(t, f, id)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		require.NotNil(t, job.Transcript)
		transcripts = append(transcripts, *job.Transcript)
	}
	for _, tr := range transcripts {
		assert.Equal(t, "hello world", tr, "all jobs report identical results")
	}

	stats := f.results.Stats()
	assert.Equal(t, uint64(1), stats.Misses, "exactly one underlying computation")
	assert.Equal(t, uint64(n-1), stats.Hits)
}

func TestCollaboratorFailureIsTerminalAndNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)

	boom := errors.New("speech backend unavailable")
	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("", boom)

	f := newFixture(t, analyzer, config.JobsConfig{})
	ctx := context.Background()
	audio := []byte("doomed-audio")

	job, err := f.svc.Submit(ctx, audio, "owner")
	require.NoError(t, err)

	failed := waitTerminal(t, f, job.ID)
	assert.Equal(t, model.JobStatusError, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "transcription failed")
	assert.Nil(t, failed.Transcript, "errored jobs carry no transcript")
	assert.Equal(t, 0, f.results.Stats().Entries, "failures are not cached")

	// The next submission of the same content computes again.
	expectAnalysis(analyzer, "recovered", greetingCategory)
	retry, err := f.svc.Submit(ctx, audio, "owner")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, retry.Status, "failure did not populate the cache")

	done := waitTerminal(t, f, retry.ID)
	assert.Equal(t, model.JobStatusCompleted, done.Status)
}

func TestCategorizationFailureFailsJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)

	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("hello world", nil)
	analyzer.EXPECT().LookupProvider(gomock.Any(), gomock.Any()).Return(model.ProviderOpenAI, nil)
	analyzer.EXPECT().Categorize(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(model.CategoryResult{}, errors.New("llm quota exceeded"))

	f := newFixture(t, analyzer, config.JobsConfig{})

	job, err := f.svc.Submit(context.Background(), []byte("audio"), "owner")
	require.NoError(t, err)

	failed := waitTerminal(t, f, job.ID)
	assert.Equal(t, model.JobStatusError, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "categorization failed")
	assert.Nil(t, failed.Transcript, "transcript is cleared when the job errors")
}

func TestCacheHitJobsAreNeverVisiblyIncomplete(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, mocks.NewMockAnalyzer(ctrl), config.JobsConfig{})
	ctx := context.Background()

	audio := []byte("warm-content")
	f.results.Set(cache.Fingerprint(audio), model.AnalysisResult{
		Transcript: "hello world",
		Category:   greetingCategory,
	})

	// Scan the owner's jobs continuously while cache-hit submissions land.
	// A completed job must never be observable without its transcript.
	var violation string
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(200 * time.Millisecond)
		for time.Now().Before(deadline) {
			for _, job := range f.svc.ListJobs(ctx, "owner") {
				if job.Status != model.JobStatusCompleted {
					continue
				}
				if job.Transcript == nil || job.Progress != 1.0 {
					violation = "observed a completed job without its result: " + job.ID
					return
				}
			}
		}
	}()

	for range 200 {
		job, err := f.svc.Submit(ctx, audio, "owner")
		require.NoError(t, err)
		require.Equal(t, model.JobStatusCompleted, job.Status)
		require.NotNil(t, job.Transcript)
	}

	<-done
	assert.Empty(t, violation)
}

func TestProviderPreferenceIsCachedPerUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)

	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("t", nil).Times(2)
	// The expensive provider lookup runs once; the second job hits the
	// preference cache.
	analyzer.EXPECT().LookupProvider(gomock.Any(), "owner").Return(model.ProviderAnthropic, nil).Times(1)
	analyzer.EXPECT().Categorize(gomock.Any(), "t", model.ProviderAnthropic).
		Return(greetingCategory, nil).Times(2)

	f := newFixture(t, analyzer, config.JobsConfig{})
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, []byte("clip-one"), "owner")
	require.NoError(t, err)
	waitTerminal(t, f, first.ID)

	second, err := f.svc.Submit(ctx, []byte("clip-two"), "owner")
	require.NoError(t, err)
	waitTerminal(t, f, second.ID)

	stats := f.prefs.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestAnalyzeTimeoutFailsJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)

	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []byte) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	f := newFixture(t, analyzer, config.JobsConfig{AnalyzeTimeout: 20 * time.Millisecond})

	job, err := f.svc.Submit(context.Background(), []byte("slow"), "owner")
	require.NoError(t, err)

	failed := waitTerminal(t, f, job.ID)
	assert.Equal(t, model.JobStatusError, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
}

func TestStatusAndProgressAreMonotonic(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)
	expectAnalysis(analyzer, "hello world", greetingCategory)
	f := newFixture(t, analyzer, config.JobsConfig{})
	ctx := context.Background()

	job, err := f.svc.Submit(ctx, []byte("watched"), "owner")
	require.NoError(t, err)

	// Observe the job continuously until terminal; every observation must be
	// at or past the previous one.
	ranks := map[model.JobStatus]int{
		model.JobStatusQueued:     0,
		model.JobStatusProcessing: 1,
		model.JobStatusCompleted:  2,
		model.JobStatusError:      2,
	}
	lastRank := -1
	lastProgress := -1.0
	var violation string
	require.Eventually(t, func() bool {
		got, err := f.svc.GetJob(ctx, job.ID)
		if err != nil {
			violation = err.Error()
			return true
		}
		if ranks[got.Status] < lastRank {
			violation = "backward status transition to " + string(got.Status)
			return true
		}
		if got.Progress < lastProgress {
			violation = "progress decreased"
			return true
		}
		lastRank = ranks[got.Status]
		lastProgress = got.Progress
		return got.Status.Terminal()
	}, 5*time.Second, time.Millisecond)
	assert.Empty(t, violation)
}

func TestListJobsNewestFirstViaService(t *testing.T) {
	ctrl := gomock.NewController(t)
	analyzer := mocks.NewMockAnalyzer(ctrl)
	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("one", nil)
	analyzer.EXPECT().Transcribe(gomock.Any(), gomock.Any()).Return("two", nil)
	// One lookup only: the second job hits the preference cache.
	analyzer.EXPECT().LookupProvider(gomock.Any(), "owner").Return(model.ProviderOpenAI, nil).Times(1)
	analyzer.EXPECT().Categorize(gomock.Any(), gomock.Any(), model.ProviderOpenAI).
		Return(greetingCategory, nil).Times(2)
	f := newFixture(t, analyzer, config.JobsConfig{})
	ctx := context.Background()

	a, err := f.svc.Submit(ctx, []byte("first-clip"), "owner")
	require.NoError(t, err)
	waitTerminal(t, f, a.ID)
	b, err := f.svc.Submit(ctx, []byte("second-clip"), "owner")
	require.NoError(t, err)
	waitTerminal(t, f, b.ID)

	jobs := f.svc.ListJobs(ctx, "owner")
	require.Len(t, jobs, 2)
	assert.Equal(t, b.ID, jobs[0].ID)
}
