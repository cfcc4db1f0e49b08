package scheduler

import (
	"time"

	appconfig "github.com/trinetlabs/trinet/internal/config"
)

// Config controls scheduler cadence and the pool payout calendar.
type Config struct {
	RunInterval         time.Duration
	JobTimeout          time.Duration
	PoolDistributionDay int
}

func DefaultConfig() Config {
	return Config{
		RunInterval:         time.Minute,
		JobTimeout:          30 * time.Second,
		PoolDistributionDay: 5,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.PoolDistributionDay <= 0 || c.PoolDistributionDay > 28 {
		c.PoolDistributionDay = defaults.PoolDistributionDay
	}
	return c
}

func ProvideConfig(cfg appconfig.Config) Config {
	return Config{
		RunInterval:         cfg.SchedulerInterval,
		PoolDistributionDay: cfg.PoolDistributionDay,
	}.withDefaults()
}
