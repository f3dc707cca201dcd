package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/soundpipe/soundpipe/config"
	"github.com/soundpipe/soundpipe/internal/adapters/canned"
	"github.com/soundpipe/soundpipe/internal/cache"
	"github.com/soundpipe/soundpipe/internal/data"
	"github.com/soundpipe/soundpipe/internal/domain/model"
	"github.com/soundpipe/soundpipe/internal/service"
)

// ServiceDeps contains shared dependencies for service construction.
type ServiceDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
}

// ServiceContainer holds every constructed service and its backing stores.
type ServiceContainer struct {
	Jobs    *data.JobStore
	Users   *data.UserStore
	Results *cache.Cache[model.AnalysisResult]
	Prefs   *cache.Cache[model.Provider]

	Transcription *service.TranscriptionService
	Stats         *service.StatsService
}

// NewServices constructs the full service graph: stores, caches, the canned
// analysis adapter, and the services on top of them.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
		cfg.Sanitize()
	}

	jobs := data.NewJobStore()
	users := data.NewUserStore()
	results := cache.New[model.AnalysisResult](cache.Options{
		Name: "results",
		TTL:  cfg.Cache.ResultTTL,
	})
	prefs := cache.New[model.Provider](cache.Options{
		Name: "preferences",
		TTL:  cfg.Cache.PreferenceTTL,
	})

	analyzer := canned.New(canned.Options{
		Latency: cfg.Jobs.SimulatedLatency,
		Logger:  logger,
	})

	transcription, err := service.NewTranscriptionService(service.TranscriptionServiceOptions{
		Jobs:     jobs,
		Users:    users,
		Results:  results,
		Prefs:    prefs,
		Analyzer: analyzer,
		Config:   cfg.Jobs,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build transcription service: %w", err)
	}

	stats, err := service.NewStatsService(service.StatsServiceOptions{
		Caches: []service.StatsCache{results, prefs},
		Jobs:   jobs,
		Users:  users,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build stats service: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobs,
		Users:         users,
		Results:       results,
		Prefs:         prefs,
		Transcription: transcription,
		Stats:         stats,
	}, nil
}
