package resolvesession

import (
	"time"

	"admissions-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// RequireVerifiedEmail refuses sessions whose email the identity
	// provider has not verified.
	RequireVerifiedEmail bool
}

func DefaultConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func ConfigFrom(wc config.WorkerConfig) *Config {
	c := DefaultConfig()
	if wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	return c
}
