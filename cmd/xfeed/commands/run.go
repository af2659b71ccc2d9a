package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChineseLsh/x-feed-digest/digest"
	"github.com/ChineseLsh/x-feed-digest/errors"
	"github.com/ChineseLsh/x-feed-digest/feed"
	"github.com/ChineseLsh/x-feed-digest/logger"
)

// RunCmd runs a one-shot digest from a handle CSV file
var RunCmd = &cobra.Command{
	Use:   "run <handles.csv>",
	Short: "Run a one-shot digest from a handle CSV file",
	Long: `Run a single digest job in the foreground and print the summary.

The CSV file needs a handle column (handle, username, or screen_name);
display name and bio columns are picked up when present. Headerless
single-column files work too.

Example:
  xfeed run handles.csv
  xfeed run handles.csv --batch-size 5 --csv-out tweets.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		csvOut, _ := cmd.Flags().GetString("csv-out")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read handle file: %w", err)
		}
		handles, err := feed.ParseHandleCSV(data)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %d handles from %s\n", len(handles), args[0])

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		fetcher, summarizer, err := buildProviders(cfg)
		if err != nil {
			return err
		}

		executor := digest.NewExecutor(context.Background(), database, cfg.Digest, fetcher, summarizer, logger.Logger)
		defer executor.Stop()

		job, err := executor.Submit(handles, batchSize)
		if err != nil {
			return err
		}
		fmt.Printf("Job %s started (%d batches)\n", job.ID, len(job.Batches))

		executor.Wait()

		finished, err := executor.GetJob(job.ID)
		if err != nil {
			return err
		}

		counts := finished.Counts()
		fmt.Printf("Job %s finished: %s (%d/%d batches succeeded)\n",
			finished.ID, finished.Status, counts.Succeeded, len(finished.Batches))

		if csvOut != "" {
			merged, tweets, err := executor.MergedCSV(finished.ID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(csvOut, []byte(merged), 0o644); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}
			fmt.Printf("Wrote %d tweets to %s\n", tweets, csvOut)
		}

		if finished.Status != digest.JobStatusDone {
			return errors.Newf("digest failed: %s", finished.Error)
		}

		fmt.Println("\n" + finished.SummaryText)
		return nil
	},
}

func init() {
	RunCmd.Flags().Int("batch-size", 0, "Handles per batch (0 = configured default)")
	RunCmd.Flags().String("csv-out", "", "Also write the merged tweet CSV to this file")
}
