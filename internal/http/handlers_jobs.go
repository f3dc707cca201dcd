package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/soundpipe/soundpipe/internal/domain/model"
	apperrors "github.com/soundpipe/soundpipe/internal/errors"
	"github.com/soundpipe/soundpipe/internal/service"
)

// maxAudioBytes bounds the accepted audio payload size.
const maxAudioBytes = 32 << 20 // 32 MiB

// JobHandlers handles transcription job endpoints.
type JobHandlers struct {
	Svc     *service.TranscriptionService
	Version string
}

// Transcribe handles POST /transcribe: it accepts the raw audio payload and
// returns the job id immediately; analysis continues asynchronously.
func (h *JobHandlers) Transcribe(w http.ResponseWriter, r *http.Request) {
	owner, ok := UserFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Err:     errors.New("owner not resolved"),
		})
		return
	}

	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, ErrorParams{
				Code:    http.StatusRequestEntityTooLarge,
				ErrCode: string(apperrors.ErrCodeValidation),
				Err:     errors.New("audio payload too large"),
			})
			return
		}
		// Usually the client going away mid-upload.
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: string(apperrors.ErrCodeValidation),
			Err:     errors.New("read audio payload failed"),
		})
		return
	}

	job, err := h.Svc.Submit(r.Context(), audio, owner.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, model.TranscribeResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Version: h.Version,
	})
}

// GetJob handles GET /jobs/{job_id}.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.GetJob(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, model.JobStatusFromJob(job, h.Version))
}

// ListJobs handles GET /jobs: every job of the calling owner, newest first.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	owner, ok := UserFromContext(r.Context())
	if !ok {
		WriteJSON(w, http.StatusOK, []model.JobStatusResponse{})
		return
	}

	jobs := h.Svc.ListJobs(r.Context(), owner.ID)
	out := make([]model.JobStatusResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, model.JobStatusFromJob(job, h.Version))
	}
	WriteJSON(w, http.StatusOK, out)
}

// writeAppError maps an application error onto the wire.
func writeAppError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeNotFound:
		code = http.StatusNotFound
	case apperrors.ErrCodeValidation:
		code = http.StatusBadRequest
	case apperrors.ErrCodeStaleVersion:
		code = http.StatusUpgradeRequired
	}
	errCode := apperrors.GetCode(err)
	if errCode == "" {
		errCode = apperrors.ErrCodeInternal
	}
	WriteError(w, ErrorParams{Code: code, ErrCode: string(errCode), Err: err})
}
