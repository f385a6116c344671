package scheduler

import (
	"time"

	"github.com/smallbiznis/blsuntech/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval      time.Duration
	ReplayBatchSize  int
	JobTimeout       time.Duration
	DisableReplayJob bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Minute,
		ReplayBatchSize: 25,
		JobTimeout:      30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:     cfg.Webhook.ReplayInterval,
		ReplayBatchSize: cfg.Webhook.ReplayBatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ReplayBatchSize <= 0 {
		c.ReplayBatchSize = defaults.ReplayBatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
