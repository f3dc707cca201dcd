package config

import "time"

// CacheConfig contains content cache configuration.
type CacheConfig struct {
	// ResultTTL is how long an analysis result stays cached. Zero disables
	// expiry. Identical audio submitted within the TTL is served from cache
	// without touching the collaborators.
	ResultTTL time.Duration `env:"CACHE_RESULT_TTL" envDefault:"24h"`

	// PreferenceTTL is how long a user's provider preference stays cached.
	// Zero disables expiry.
	PreferenceTTL time.Duration `env:"CACHE_PREFERENCE_TTL" envDefault:"1h"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	if c.ResultTTL < 0 {
		c.ResultTTL = 0
	}
	if c.PreferenceTTL < 0 {
		c.PreferenceTTL = 0
	}
}
