package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/soundpipe/soundpipe/internal/domain/model"
	apperrors "github.com/soundpipe/soundpipe/internal/errors"
	"github.com/soundpipe/soundpipe/internal/service"
)

// MiscHandlers handles the version, user, stats and cache endpoints.
type MiscHandlers struct {
	Stats   *service.StatsService
	Version string
}

// GetVersion handles GET /version.
func (h *MiscHandlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, model.VersionResponse{Version: h.Version})
}

// GetUser handles GET /user: it returns the calling owner's id, provisioning
// a new opaque id when none was supplied. Clients persist the id across
// sessions.
func (h *MiscHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	owner, ok := UserFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Err:     errors.New("owner not resolved"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, model.UserResponse{UserID: owner.ID, Version: h.Version})
}

// GetStats handles GET /stats.
func (h *MiscHandlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	snap := h.Stats.Snapshot()
	snap.Version = h.Version
	WriteJSON(w, http.StatusOK, snap)
}

// ClearCache handles POST /clear-cache. Idempotent.
func (h *MiscHandlers) ClearCache(w http.ResponseWriter, _ *http.Request) {
	h.Stats.ClearAll()
	WriteJSON(w, http.StatusOK, model.ClearCacheResponse{
		Status:  "success",
		Message: "All caches cleared",
	})
}

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
