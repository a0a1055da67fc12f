package main

import (
	"fmt"
	"os"

	"github.com/jonathan/bizscout/internal/dispatch"
	"github.com/jonathan/bizscout/internal/observability"
	"github.com/spf13/cobra"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run a bounded dispatch session",
	Long: `Run search tasks until --max-tasks is reached or no eligible task remains.
Progress is recorded on a job run. With --max-tasks 0 the session stops at the first failed task.`,
	RunE: runDispatch,
}

var (
	dispatchMaxTasks int
	dispatchBucket   string
	dispatchTypes    []string
)

func init() {
	dispatchCmd.Flags().IntVarP(&dispatchMaxTasks, "max-tasks", "n", 10, "Maximum tasks to process (0 = until empty or first failure)")
	dispatchCmd.Flags().StringVar(&dispatchBucket, "time-bucket", "", "Only claim tasks in this time bucket")
	dispatchCmd.Flags().StringSliceVar(&dispatchTypes, "task-type", nil, "Only claim tasks of these types (repeatable)")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(_ *cobra.Command, _ []string) error {
	if dispatchMaxTasks < 0 {
		return fmt.Errorf("--max-tasks must be >= 0")
	}
	taskTypes, err := taskTypeFilter(dispatchTypes)
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

	session := dispatch.NewSession(a.runner, a.db, logger)
	result, runErr := session.Run(ctx, dispatch.SessionOptions{
		MaxTasks:   dispatchMaxTasks,
		TimeBucket: dispatchBucket,
		TaskTypes:  taskTypes,
		OnState: func(s dispatch.State) {
			logger.Debug("session state", "state", s)
		},
	})
	observability.NewPrinter(os.Stdout).PrintSessionResult(result)
	return runErr
}
