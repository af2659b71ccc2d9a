package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChineseLsh/x-feed-digest/digest"
	"github.com/ChineseLsh/x-feed-digest/digest/schedule"
	"github.com/ChineseLsh/x-feed-digest/logger"
	"github.com/ChineseLsh/x-feed-digest/server"
)

// ServeCmd starts the API server with the job engine and scheduler
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the digest API server",
	Long: `Start the HTTP API server in foreground mode.

The server runs:
- The job engine (batch planner, worker pool, summarizer)
- The subscription scheduler (daily digest fire times)
- The JSON API for jobs and subscriptions

Runs until interrupted (Ctrl+C); in-flight batches finish before exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		fetcher, summarizer, err := buildProviders(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		executor := digest.NewExecutor(ctx, database, cfg.Digest, fetcher, summarizer, logger.Logger)

		scheduler := schedule.NewScheduler(ctx, database, executor, schedule.SchedulerConfig{
			TickInterval: cfg.Scheduler.TickInterval(),
		}, logger.Logger)
		scheduler.Start()

		srv := server.NewServer(executor, scheduler, cfg, logger.Logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Printf("x-feed-digest serving on port %d\n", cfg.ResolvedPort())
		fmt.Printf("  Database: %s\n", cfg.Database.Path)
		fmt.Printf("  Workers: %d\n", cfg.Digest.MaxWorkers)
		fmt.Printf("  Scheduler tick: %v\n", cfg.Scheduler.TickInterval())
		fmt.Println("\nPress Ctrl+C to shut down")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigChan:
		}

		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Warnw("Server shutdown error", "error", err)
		}

		// Stop components in reverse order of startup
		scheduler.Stop()
		executor.Stop()

		fmt.Println("Stopped")
		return nil
	},
}
