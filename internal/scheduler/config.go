package scheduler

import (
	"time"

	"github.com/smallbiznis/covercheck/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled           bool
	RunInterval       time.Duration
	RunTimeout        time.Duration
	BatchSize         int
	RecoveryThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RunInterval:       time.Hour,
		RunTimeout:        10 * time.Minute,
		BatchSize:         200,
		RecoveryThreshold: 15 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	threshold := DefaultConfig().RecoveryThreshold
	// A certificate is only stale once its extraction could no longer be running.
	if limit := 2 * cfg.Extraction.Timeout; limit > threshold {
		threshold = limit
	}
	return Config{
		Enabled:           cfg.Scheduler.SweepEnabled,
		RunInterval:       cfg.Scheduler.SweepInterval,
		RunTimeout:        cfg.Scheduler.SweepTimeout,
		BatchSize:         cfg.Scheduler.SweepBatch,
		RecoveryThreshold: threshold,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = defaults.RecoveryThreshold
	}
	return c
}
