package model

// API response shapes shared by the HTTP layer and the client.
// Every response carries the server's protocol version so clients can detect
// drift even when they ignore headers.

// VersionResponse is the response for GET /version.
type VersionResponse struct {
	Version string `json:"version"`
}

// UserResponse is the response for GET /user.
type UserResponse struct {
	UserID  string `json:"user_id"`
	Version string `json:"version"`
}

// TranscribeResponse is the response for POST /transcribe.
type TranscribeResponse struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Version string    `json:"version"`
}

// JobStatusResponse is the response for GET /jobs/{job_id} and the element
// shape for GET /jobs.
type JobStatusResponse struct {
	JobID      string          `json:"job_id"`
	Status     JobStatus       `json:"status"`
	Progress   float64         `json:"progress"`
	Transcript *string         `json:"transcript,omitempty"`
	Category   *CategoryResult `json:"category,omitempty"`
	Error      *string         `json:"error,omitempty"`
	Version    string          `json:"version"`
}

// JobStatusFromJob projects a job snapshot into its API shape.
func JobStatusFromJob(job Job, version string) JobStatusResponse {
	return JobStatusResponse{
		JobID:      job.ID,
		Status:     job.Status,
		Progress:   job.Progress,
		Transcript: job.Transcript,
		Category:   job.Category,
		Error:      job.ErrorMessage,
		Version:    version,
	}
}

// CacheStats is the per-cache block of the GET /stats response.
type CacheStats struct {
	Name    string  `json:"name"`
	Entries int     `json:"entries"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// StatsResponse is the response for GET /stats.
type StatsResponse struct {
	Caches     []CacheStats `json:"caches"`
	ActiveJobs int          `json:"active_jobs"`
	Users      int          `json:"users"`
	Version    string       `json:"version"`
}

// ClearCacheResponse is the response for POST /clear-cache.
type ClearCacheResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
