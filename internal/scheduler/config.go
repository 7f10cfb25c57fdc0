package scheduler

import (
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

// Config controls sweep intervals and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   50,
		JobTimeout:  30 * time.Second,
		LockTTL:     2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig() Config {
	return DefaultConfig()
}
