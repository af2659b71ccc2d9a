package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "xfeed.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"http://127.0.0.1",
	})

	// Digest (job engine) defaults — mirror the provider-side limits we
	// have observed in practice
	v.SetDefault("digest.default_batch_size", 10)
	v.SetDefault("digest.max_batch_size", 50)
	v.SetDefault("digest.max_workers", 5)
	v.SetDefault("digest.max_retries", 2)
	v.SetDefault("digest.backoff_base_seconds", 0.5)
	v.SetDefault("digest.backoff_max_seconds", 8.0)
	v.SetDefault("digest.fetch_timeout_seconds", 120)
	v.SetDefault("digest.max_requests_per_minute", 10) // polite default, avoids provider throttling

	// Scheduler defaults
	v.SetDefault("scheduler.tick_interval_seconds", 60)

	// Grok provider defaults
	v.SetDefault("grok.base_url", "https://api.x.ai")
	v.SetDefault("grok.model", "grok-3-latest")
	v.SetDefault("grok.temperature", 0.2) // deterministic
	v.SetDefault("grok.timeout_seconds", 120)

	// Summary provider defaults (empty = reuse grok provider)
	v.SetDefault("summary.max_tokens", 4096)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to
// environment variables so API keys never need to live in the config file
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("grok.api_key", "XFEED_GROK_API_KEY")
	v.BindEnv("summary.api_key", "XFEED_SUMMARY_API_KEY")
}
