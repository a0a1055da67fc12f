package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/observability"
	"github.com/spf13/cobra"
)

var requeueCmd = &cobra.Command{
	Use:   "requeue [task-id...]",
	Short: "List or requeue tasks that exhausted their attempts",
	Long: `Tasks whose failure streak reached the attempt ceiling stay FAILED and are never claimed again.
Without arguments, list them. With task IDs (or --all), reset their failure streak and make them runnable now.`,
	RunE: runRequeue,
}

var (
	requeueAll   bool
	requeueLimit int
)

func init() {
	requeueCmd.Flags().BoolVar(&requeueAll, "all", false, "Requeue every exhausted task")
	requeueCmd.Flags().IntVar(&requeueLimit, "limit", 50, "Maximum exhausted tasks to list or requeue")
	rootCmd.AddCommand(requeueCmd)
}

func runRequeue(cmd *cobra.Command, args []string) error {
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
	tasks := db.NewTaskStore(database, schedulePolicy(cfg))

	if len(ids) == 0 {
		exhausted, err := tasks.ListExhaustedTasks(ctx, requeueLimit)
		if err != nil {
			return err
		}
		if !requeueAll {
			observability.NewPrinter(os.Stdout).PrintExhaustedTasks(exhausted)
			return nil
		}
		for _, t := range exhausted {
			ids = append(ids, t.ID)
		}
	}

	for _, id := range ids {
		if err := tasks.Requeue(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", id)
	}
	return nil
}

func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
