package service

import (
	"errors"
	"log/slog"

	"github.com/soundpipe/soundpipe/internal/cache"
	"github.com/soundpipe/soundpipe/internal/data"
	"github.com/soundpipe/soundpipe/internal/domain/model"
)

// StatsCache is the slice of the cache API the stats service needs. Every
// tracked cache reports counters and can be wiped, regardless of value type.
type StatsCache interface {
	Stats() cache.Stats
	Clear()
}

// StatsServiceOptions groups dependencies for StatsService.
type StatsServiceOptions struct {
	Caches []StatsCache    // Required: every cache tracked by /stats and /clear-cache
	Jobs   *data.JobStore  // Required: job registry
	Users  *data.UserStore // Required: user registry
	Logger *slog.Logger    // Optional: structured logger
}

// StatsService reports per-cache counters plus job and user counts, and
// clears all tracked caches on demand.
type StatsService struct {
	caches []StatsCache
	jobs   *data.JobStore
	users  *data.UserStore
	logger *slog.Logger
}

// NewStatsService constructs a new StatsService.
func NewStatsService(opts StatsServiceOptions) (*StatsService, error) {
	if len(opts.Caches) == 0 {
		return nil, errors.New("at least one cache is required")
	}
	if opts.Jobs == nil || opts.Users == nil {
		return nil, errors.New("job and user stores are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StatsService{
		caches: opts.Caches,
		jobs:   opts.Jobs,
		users:  opts.Users,
		logger: logger.With("component", "stats_service"),
	}, nil
}

// Snapshot returns the current stats for every tracked cache plus counts of
// known jobs and users.
func (s *StatsService) Snapshot() model.StatsResponse {
	caches := make([]model.CacheStats, 0, len(s.caches))
	for _, c := range s.caches {
		st := c.Stats()
		caches = append(caches, model.CacheStats{
			Name:    st.Name,
			Entries: st.Entries,
			Hits:    st.Hits,
			Misses:  st.Misses,
			HitRate: st.HitRate,
		})
	}
	return model.StatsResponse{
		Caches:     caches,
		ActiveJobs: s.jobs.Count(),
		Users:      s.users.Count(),
	}
}

// ClearAll wipes every tracked cache. Idempotent.
func (s *StatsService) ClearAll() {
	for _, c := range s.caches {
		c.Clear()
	}
	s.logger.Info("all caches cleared", "caches", len(s.caches))
}
