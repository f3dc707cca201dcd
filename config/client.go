package config

import "time"

// ClientConfig contains polling client configuration.
type ClientConfig struct {
	// PollInterval is the fixed period between job reconciliation ticks.
	PollInterval time.Duration `env:"CLIENT_POLL_INTERVAL" envDefault:"2s"`

	// VersionCheckInterval is the fixed period between protocol compatibility
	// re-checks, independent of job polling.
	VersionCheckInterval time.Duration `env:"CLIENT_VERSION_CHECK_INTERVAL" envDefault:"5m"`

	// TerminalPollGrace is how long a job keeps being polled after it reaches a
	// terminal state. The job itself is retained indefinitely either way.
	TerminalPollGrace time.Duration `env:"CLIENT_TERMINAL_POLL_GRACE" envDefault:"30s"`

	// RequestTimeout bounds a single HTTP request issued by the client.
	RequestTimeout time.Duration `env:"CLIENT_REQUEST_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to client configuration values.
func (c *ClientConfig) Sanitize() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.VersionCheckInterval <= 0 {
		c.VersionCheckInterval = 5 * time.Minute
	}
	if c.TerminalPollGrace < 0 {
		c.TerminalPollGrace = 30 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
}
