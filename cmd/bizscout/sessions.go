package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/observability"
	"github.com/spf13/cobra"
)

var enqueueSessionCmd = &cobra.Command{
	Use:   "enqueue-session",
	Short: "Queue a dispatch session for the worker's poller",
	RunE:  runEnqueueSession,
}

var cancelSessionCmd = &cobra.Command{
	Use:   "cancel-session <job-request-id>",
	Short: "Request cancellation of a queued or running session",
	Long:  "Set the cancel flag on a job request. A running session stops before claiming its next task.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancelSession,
}

var jobRunsCmd = &cobra.Command{
	Use:   "job-runs",
	Short: "List recent dispatch sessions",
	RunE:  runJobRuns,
}

var (
	enqueueMaxTasks int
	enqueueBucket   string
	jobRunsLimit    int
)

func init() {
	enqueueSessionCmd.Flags().IntVarP(&enqueueMaxTasks, "max-tasks", "n", 10, "Maximum tasks for the session (0 = until empty or first failure)")
	enqueueSessionCmd.Flags().StringVar(&enqueueBucket, "time-bucket", "", "Only claim tasks in this time bucket")
	jobRunsCmd.Flags().IntVar(&jobRunsLimit, "limit", 10, "Number of runs to show")

	rootCmd.AddCommand(enqueueSessionCmd)
	rootCmd.AddCommand(cancelSessionCmd)
	rootCmd.AddCommand(jobRunsCmd)
}

func runEnqueueSession(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	req, err := database.CreateJobRequest(ctx, db.JobRequestInput{
		Kind:       db.JobKindSearchSession,
		MaxTasks:   enqueueMaxTasks,
		TimeBucket: enqueueBucket,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", req.ID)
	return nil
}

func runCancelSession(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.RequestCancel(ctx, ids[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cancel requested for %s\n", ids[0])
	return nil
}

func runJobRuns(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListJobRuns(ctx, jobRunsLimit)
	if err != nil {
		return err
	}
	observability.NewPrinter(os.Stdout).PrintJobRuns(runs)
	return nil
}
