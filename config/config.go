// Package config loads and validates the x-feed-digest configuration.
package config

import "time"

// Config represents the core x-feed-digest configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Digest    DigestConfig    `mapstructure:"digest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Grok      GrokConfig      `mapstructure:"grok"`
	Summary   SummaryConfig   `mapstructure:"summary"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API server
type ServerConfig struct {
	Port           *int     `mapstructure:"port"` // nil = default 8780, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Server port constants
const (
	DefaultServerPort = 8780
)

// DigestConfig configures batching, retries, and the worker pool — the
// knobs the job engine consumes.
type DigestConfig struct {
	DefaultBatchSize     int     `mapstructure:"default_batch_size"`      // handles per batch when the caller passes 0
	MaxBatchSize         int     `mapstructure:"max_batch_size"`          // upper bound accepted on submit
	MaxWorkers           int     `mapstructure:"max_workers"`             // process-wide concurrent batch fetches
	MaxRetries           int     `mapstructure:"max_retries"`             // retries per batch beyond the first attempt
	BackoffBaseSeconds   float64 `mapstructure:"backoff_base_seconds"`    // first retry delay
	BackoffMaxSeconds    float64 `mapstructure:"backoff_max_seconds"`     // delay cap
	FetchTimeoutSeconds  int     `mapstructure:"fetch_timeout_seconds"`   // per-fetch deadline
	MaxRequestsPerMinute int     `mapstructure:"max_requests_per_minute"` // provider politeness gate (0 = unlimited)
}

// BackoffBase returns the base retry delay as a duration
func (c DigestConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSeconds * float64(time.Second))
}

// BackoffMax returns the retry delay cap as a duration
func (c DigestConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSeconds * float64(time.Second))
}

// FetchTimeout returns the per-fetch deadline as a duration
func (c DigestConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// SchedulerConfig configures the subscription scheduler
type SchedulerConfig struct {
	TickIntervalSeconds int `mapstructure:"tick_interval_seconds"` // how often subscriptions are checked (default: 60)
}

// TickInterval returns the scheduler tick interval as a duration
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// GrokConfig configures the OpenAI-compatible provider used for timeline
// fetching
type GrokConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	APIKey         string   `mapstructure:"api_key"`
	Model          string   `mapstructure:"model"`
	Temperature    *float64 `mapstructure:"temperature"` // nil = default 0.2
	MaxTokens      *int     `mapstructure:"max_tokens"`  // nil = provider default
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// SummaryConfig configures the summarization provider. Fields left empty
// fall back to the Grok provider settings.
type SummaryConfig struct {
	BaseURL     string   `mapstructure:"base_url"`
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens"`
}
