// Package httpx provides the HTTP transport layer of the soundpipe service.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/soundpipe/soundpipe/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Transcription *service.TranscriptionService
	Stats         *service.StatsService
	Users         UserProvisioner
	// Version is the protocol version advertised and enforced by this server.
	Version string
	Logger  *slog.Logger // Logger for middleware (optional)
}

// NewRouter creates and configures the HTTP router with the full middleware
// chain: Recover -> Logging -> VersionCheck -> ResolveUser -> mux.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Transcription, Version: services.Version}
	miscHandlers := &MiscHandlers{Stats: services.Stats, Version: services.Version}

	mux.HandleFunc("POST /transcribe", jobHandlers.Transcribe)
	mux.HandleFunc("GET /jobs/{job_id}", jobHandlers.GetJob)
	mux.HandleFunc("GET /jobs", jobHandlers.ListJobs)
	mux.HandleFunc("GET /version", miscHandlers.GetVersion)
	mux.HandleFunc("GET /user", miscHandlers.GetUser)
	mux.HandleFunc("GET /stats", miscHandlers.GetStats)
	mux.HandleFunc("POST /clear-cache", miscHandlers.ClearCache)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	handler = ResolveUser(services.Users)(handler)
	handler = VersionCheck(services.Version, logger)(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
