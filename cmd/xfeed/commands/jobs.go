package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChineseLsh/x-feed-digest/digest"
)

// JobsCmd groups job inspection subcommands
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect stored digest jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// JobsLsCmd lists recent jobs
var JobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent digest jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		statusFlag, _ := cmd.Flags().GetString("status")

		var status *digest.JobStatus
		if statusFlag != "" {
			if !digest.IsValidJobStatus(statusFlag) {
				return fmt.Errorf("invalid status: %s", statusFlag)
			}
			st := digest.JobStatus(statusFlag)
			status = &st
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		jobs, err := digest.NewStore(database).ListJobs(status, limit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found")
			return nil
		}

		fmt.Printf("%-36s  %-12s  %8s  %8s  %s\n", "ID", "STATUS", "HANDLES", "BATCHES", "CREATED")
		for _, job := range jobs {
			counts := job.Counts()
			fmt.Printf("%-36s  %-12s  %8d  %3d/%-3d   %s\n",
				job.ID, job.Status, job.TotalHandles,
				counts.Succeeded, len(job.Batches),
				job.CreatedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

// JobsShowCmd prints one job with batch detail
var JobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one digest job with batch detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		job, err := digest.NewStore(database).GetJob(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Job %s\n", job.ID)
		fmt.Printf("  Status:  %s\n", job.Status)
		fmt.Printf("  Handles: %d (batch size %d)\n", job.TotalHandles, job.BatchSize)
		fmt.Printf("  Created: %s\n", job.CreatedAt.Local().Format(time.DateTime))
		if job.Error != "" {
			fmt.Printf("  Error:   %s\n", job.Error)
		}

		fmt.Println("\nBatches:")
		for _, b := range job.Batches {
			line := fmt.Sprintf("  [%d] %s  attempts %d/%d", b.Index, b.Status, b.Attempts, b.MaxAttempts)
			if b.Error != "" {
				line += "  " + b.Error
			}
			fmt.Println(line)
		}

		if job.SummaryText != "" {
			fmt.Println("\nSummary:")
			fmt.Println(indent(job.SummaryText, "  "))
		}
		return nil
	},
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func init() {
	JobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to list")
	JobsLsCmd.Flags().String("status", "", "Filter by status (queued, running, summarizing, done, failed)")

	JobsCmd.AddCommand(JobsLsCmd)
	JobsCmd.AddCommand(JobsShowCmd)
}
