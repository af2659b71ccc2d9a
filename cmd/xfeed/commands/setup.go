package commands

import (
	"database/sql"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChineseLsh/x-feed-digest/ai/grok"
	"github.com/ChineseLsh/x-feed-digest/config"
	"github.com/ChineseLsh/x-feed-digest/db"
	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/logger"
)

// loadConfig resolves configuration, honoring the global --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// openDatabase opens and migrates the configured SQLite database.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// buildProviders wires the fetch and summary clients from configuration.
// Summary fields left empty fall back to the Grok provider settings, so a
// single API key is a complete setup.
func buildProviders(cfg *config.Config) (*grok.Fetcher, *grok.Summarizer, error) {
	if cfg.Grok.APIKey == "" {
		return nil, nil, errors.Wrap(errors.ErrInvalidConfig,
			"grok API key not configured (set XFEED_GROK_API_KEY)")
	}

	fetchClient := grok.NewClient(grok.Config{
		BaseURL:     cfg.Grok.BaseURL,
		APIKey:      cfg.Grok.APIKey,
		Model:       cfg.Grok.Model,
		Temperature: floatOrZero(cfg.Grok.Temperature),
		MaxTokens:   intOrZero(cfg.Grok.MaxTokens),
		Timeout:     time.Duration(cfg.Grok.TimeoutSeconds) * time.Second,
	})

	summaryCfg := grok.Config{
		BaseURL:     cfg.Summary.BaseURL,
		APIKey:      cfg.Summary.APIKey,
		Model:       cfg.Summary.Model,
		Temperature: floatOrZero(cfg.Summary.Temperature),
		MaxTokens:   intOrZero(cfg.Summary.MaxTokens),
		Timeout:     time.Duration(cfg.Grok.TimeoutSeconds) * time.Second,
	}
	if summaryCfg.BaseURL == "" {
		summaryCfg.BaseURL = cfg.Grok.BaseURL
	}
	if summaryCfg.APIKey == "" {
		summaryCfg.APIKey = cfg.Grok.APIKey
	}
	if summaryCfg.Model == "" {
		summaryCfg.Model = cfg.Grok.Model
	}

	return grok.NewFetcher(fetchClient), grok.NewSummarizer(grok.NewClient(summaryCfg)), nil
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
