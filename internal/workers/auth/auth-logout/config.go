package authlogout

import (
	"fmt"
	"time"

	"admissions-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// RevokeAtIdP ends the refresh token at the identity provider as well as
	// dropping the cached session.
	RevokeAtIdP bool
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:     10 * time.Second,
		RevokeAtIdP: true,
	}
}

func ConfigFrom(wc config.WorkerConfig) *Config {
	c := DefaultConfig()
	if wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
