package config

import (
	"github.com/ChineseLsh/x-feed-digest/errors"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures deep inside the job engine.
func Validate(c *Config) error {
	if c.Digest.DefaultBatchSize < 1 {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"digest.default_batch_size must be >= 1, got %d", c.Digest.DefaultBatchSize)
	}
	if c.Digest.MaxBatchSize < c.Digest.DefaultBatchSize {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"digest.max_batch_size (%d) must be >= digest.default_batch_size (%d)",
			c.Digest.MaxBatchSize, c.Digest.DefaultBatchSize)
	}
	if c.Digest.MaxWorkers < 1 {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"digest.max_workers must be >= 1, got %d", c.Digest.MaxWorkers)
	}
	if c.Digest.MaxRetries < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"digest.max_retries must be >= 0, got %d", c.Digest.MaxRetries)
	}
	if c.Digest.BackoffBaseSeconds < 0 || c.Digest.BackoffMaxSeconds < c.Digest.BackoffBaseSeconds {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"digest backoff window invalid: base=%.2fs max=%.2fs",
			c.Digest.BackoffBaseSeconds, c.Digest.BackoffMaxSeconds)
	}
	if c.Digest.FetchTimeoutSeconds < 1 {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"digest.fetch_timeout_seconds must be >= 1, got %d", c.Digest.FetchTimeoutSeconds)
	}
	if c.Scheduler.TickIntervalSeconds < 1 {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"scheduler.tick_interval_seconds must be >= 1, got %d", c.Scheduler.TickIntervalSeconds)
	}
	if c.Server.Port != nil && (*c.Server.Port < 1 || *c.Server.Port > 65535) {
		return errors.Wrapf(errors.ErrInvalidConfig,
			"server.port out of range: %d", *c.Server.Port)
	}
	return nil
}

// ResolvedPort returns the configured server port, or the default when unset.
func (c *Config) ResolvedPort() int {
	if c.Server.Port != nil {
		return *c.Server.Port
	}
	return DefaultServerPort
}
