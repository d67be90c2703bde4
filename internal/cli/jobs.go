package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agritrace/collection-model/internal/models"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect ingestion jobs",
	Long: `List recent ingestion jobs or inspect a specific job by ID.

Examples:
  collectionctl jobs           # List recent jobs
  collectionctl jobs abc123    # Show details for job abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 50, "max results")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	jobs, err := repoClient.ListJobs(ctx, jobsLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-16s %-12s %-8s %-12s %s\n", "ID", "SOURCE", "STATUS", "RETRIES", "ERROR", "RECEIVED")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, job := range jobs {
		received := job.ReceivedAt.Format("15:04:05")
		fmt.Printf("%-10s %-16s %-12s %-8d %-12s %s\n",
			job.JobID, job.SourceID, renderStatus(job.Status), job.RetryCount, job.ErrorType, received)
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := repoClient.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	fmt.Printf("Job: %s\n", job.JobID)
	fmt.Printf("  Source: %s\n", job.SourceID)
	fmt.Printf("  Payload: %s (%s)\n", job.BlobPath, job.ContentType)
	fmt.Printf("  Status: %s\n", renderStatus(job.Status))
	if job.RetryCount > 0 {
		fmt.Printf("  Retries: %d/%d\n", job.RetryCount, models.MaxRetries)
	}
	fmt.Printf("  Received: %s\n", job.ReceivedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			duration := job.CompletedAt.Sub(*job.StartedAt)
			fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
		}
	}

	if job.ErrorMessage != "" {
		fmt.Printf("  Error (%s): %s\n", job.ErrorType, defaultTheme.errorStyle().Render(job.ErrorMessage))
	}

	// Document count needs the source's index collection; skip when the
	// source config is unavailable locally.
	if configs, err := newConfigs(); err == nil {
		if srcCfg, err := configs.GetConfig(ctx, job.SourceID); err == nil {
			if count, err := repoClient.CountByJob(ctx, srcCfg.Storage.IndexCollection, job.JobID); err == nil && count > 0 {
				fmt.Printf("  Documents: %d\n", count)
			}
		}
	}

	return nil
}
