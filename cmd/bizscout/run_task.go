package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/observability"
	"github.com/spf13/cobra"
)

var runTaskCmd = &cobra.Command{
	Use:   "run-task",
	Short: "Claim and execute one due search task",
	Long:  "Claim the next eligible search task, call its provider, normalize and resolve the results, and record the outcome.",
	RunE:  runRunTask,
}

var (
	runTaskBucket string
	runTaskTypes  []string
	runTaskJSON   bool
)

func init() {
	runTaskCmd.Flags().StringVar(&runTaskBucket, "time-bucket", "", "Only claim tasks in this time bucket")
	runTaskCmd.Flags().StringSliceVar(&runTaskTypes, "task-type", nil, "Only claim tasks of these types (repeatable)")
	runTaskCmd.Flags().BoolVar(&runTaskJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(runTaskCmd)
}

func runRunTask(cmd *cobra.Command, _ []string) error {
	taskTypes, err := taskTypeFilter(runTaskTypes)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireEngines(a.client, taskTypes); err != nil {
		return err
	}

	result, err := a.runner.RunSearchTask(ctx, db.ClaimFilter{TimeBucket: runTaskBucket, TaskTypes: taskTypes})
	if err != nil {
		return fmt.Errorf("failed to run search task: %w", err)
	}

	if runTaskJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	observability.NewPrinter(os.Stdout).PrintTaskResult(result)
	return nil
}
