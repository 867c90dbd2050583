package scheduler

import (
	"strings"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
)

// Config controls the payout sweep. An empty Cron disables it.
type Config struct {
	Cron       string
	JobTimeout time.Duration
	BatchSize  int
}

func DefaultConfig() Config {
	return Config{
		JobTimeout: 5 * time.Minute,
		BatchSize:  100,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{Cron: strings.TrimSpace(cfg.Settlement.Cron)}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
