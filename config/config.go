// Package config holds the environment-driven application configuration.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config files for the
// available variables:
//   - http.go: HTTP server configuration
//   - jobs.go: job processing configuration
//   - cache.go: content cache configuration
//   - client.go: polling client configuration
package config

// DefaultAPIVersion is the protocol version advertised when API_VERSION is unset.
const DefaultAPIVersion = "1.0.0"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
type AppConfig struct {
	// APIVersion is the protocol version advertised by this build. Clients
	// compare it against their own compiled-in version; a mismatch makes the
	// session stale.
	APIVersion string `env:"API_VERSION" envDefault:"1.0.0"`

	// IsDev controls development mode behavior (verbose logging, etc.)
	IsDev bool `env:"DEV" envDefault:"false"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Job processing configuration
	Jobs JobsConfig

	// Content cache configuration
	Cache CacheConfig

	// Polling client configuration
	Client ClientConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	c.HTTP.Sanitize()
	c.Jobs.Sanitize()
	c.Cache.Sanitize()
	c.Client.Sanitize()
}
