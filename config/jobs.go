package config

import "time"

// JobsConfig contains job processing configuration.
type JobsConfig struct {
	// AnalyzeTimeout bounds a single job's transcription plus categorization.
	// Zero disables the timeout: a hung collaborator call then holds its job in
	// processing indefinitely.
	AnalyzeTimeout time.Duration `env:"JOBS_ANALYZE_TIMEOUT" envDefault:"0"`

	// SimulatedLatency is the per-call delay of the built-in canned analyzer,
	// standing in for real collaborator round trips.
	SimulatedLatency time.Duration `env:"JOBS_SIMULATED_LATENCY" envDefault:"500ms"`
}

// Sanitize applies guardrails to job configuration values.
func (j *JobsConfig) Sanitize() {
	if j.AnalyzeTimeout < 0 {
		j.AnalyzeTimeout = 0
	}
	if j.SimulatedLatency < 0 {
		j.SimulatedLatency = 0
	}
}
