package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChineseLsh/x-feed-digest/cmd/xfeed/commands"
	"github.com/ChineseLsh/x-feed-digest/logger"
)

var rootCmd = &cobra.Command{
	Use:   "xfeed",
	Short: "x-feed-digest - AI-curated daily digests from X handle lists",
	Long: `x-feed-digest turns lists of X/Twitter handles into curated daily
digests. Handle lists are split into batches, each batch is fetched
through an AI provider with live X access, and the merged results are
summarized into a single digest.

Available commands:
  serve   - Start the API server, job engine, and subscription scheduler
  run     - Run a one-shot digest from a handle CSV file
  jobs    - Inspect stored digest jobs
  version - Show version information

Examples:
  xfeed serve                     # Start the server on the configured port
  xfeed run handles.csv           # One-shot digest, prints the summary
  xfeed jobs ls                   # List recent jobs
  xfeed jobs show <job-id>        # Show one job with batch detail`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Log in JSON instead of human-readable output")
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default: ./xfeed.toml or ~/.xfeed/xfeed.toml)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
