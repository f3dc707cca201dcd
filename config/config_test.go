package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "1.0.0", cfg.APIVersion)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, time.Duration(0), cfg.Jobs.AnalyzeTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Jobs.SimulatedLatency)
	assert.Equal(t, 24*time.Hour, cfg.Cache.ResultTTL)
	assert.Equal(t, time.Hour, cfg.Cache.PreferenceTTL)
	assert.Equal(t, 2*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Client.VersionCheckInterval)
	assert.Equal(t, 30*time.Second, cfg.Client.TerminalPollGrace)
}

func TestParseFromEnv(t *testing.T) {
	t.Setenv("API_VERSION", "2.3.4")
	t.Setenv("JOBS_ANALYZE_TIMEOUT", "45s")
	t.Setenv("CLIENT_POLL_INTERVAL", "500ms")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "2.3.4", cfg.APIVersion)
	assert.Equal(t, 45*time.Second, cfg.Jobs.AnalyzeTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.PollInterval)
}

func TestSanitizeClampsInvalidValues(t *testing.T) {
	cfg := AppConfig{
		APIVersion: "",
		Jobs:       JobsConfig{AnalyzeTimeout: -time.Second},
		Cache:      CacheConfig{ResultTTL: -1, PreferenceTTL: -1},
		Client:     ClientConfig{PollInterval: -time.Second, TerminalPollGrace: -1},
	}
	cfg.Sanitize()

	assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, time.Duration(0), cfg.Jobs.AnalyzeTimeout)
	assert.Equal(t, time.Duration(0), cfg.Cache.ResultTTL)
	assert.Equal(t, 2*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Client.TerminalPollGrace)
	assert.Positive(t, cfg.HTTP.ReadHeaderTimeout)
}
