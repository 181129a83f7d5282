package uploaddocument

import (
	"time"

	"admissions-workers/internal/common/config"
)

type Config struct {
	Timeout  time.Duration
	MaxBytes int
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		MaxBytes: 5 << 20,
	}
}

func ConfigFrom(wc config.WorkerConfig, maxBytes int) *Config {
	c := DefaultConfig()
	if wc.Timeout > 0 {
		c.Timeout = config.GetDuration(wc.Timeout)
	}
	if maxBytes > 0 {
		c.MaxBytes = maxBytes
	}
	return c
}
