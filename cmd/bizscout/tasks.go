package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/types"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var addTaskCmd = &cobra.Command{
	Use:   "add-task",
	Short: "Seed a search task",
	Long:  "Insert a PENDING search task. Tasks are unique per (type, query, country, city, language, page).",
	RunE:  runAddTask,
}

var (
	addTaskType     string
	addTaskQuery    string
	addTaskCountry  string
	addTaskCity     string
	addTaskLanguage string
	addTaskPages    int
	addTaskBucket   string
)

func init() {
	addTaskCmd.Flags().StringVarP(&addTaskType, "type", "t", string(types.TaskTypeWebSearch), "Task type: WEB_SEARCH, LOCAL_SEARCH, MAPS_SEARCH, CSE_SEARCH")
	addTaskCmd.Flags().StringVarP(&addTaskQuery, "query", "q", "", "Query text (required)")
	addTaskCmd.Flags().StringVar(&addTaskCountry, "country", "", "ISO country code (required)")
	addTaskCmd.Flags().StringVar(&addTaskCity, "city", "", "City")
	addTaskCmd.Flags().StringVar(&addTaskLanguage, "language", "en", "Language code")
	addTaskCmd.Flags().IntVar(&addTaskPages, "pages", 1, "Number of result pages to seed, starting at page 0")
	addTaskCmd.Flags().StringVar(&addTaskBucket, "time-bucket", "", "Time bucket label; a 'weekly' prefix selects the weekly refresh cadence")

	_ = addTaskCmd.MarkFlagRequired("query")
	_ = addTaskCmd.MarkFlagRequired("country")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(addTaskCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.ApplySchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
	return nil
}

func runAddTask(cmd *cobra.Command, _ []string) error {
	inputs, err := taskInputs(addTaskType, addTaskQuery, addTaskCountry, addTaskCity, addTaskLanguage, addTaskBucket, addTaskPages)
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

	for _, input := range inputs {
		task, err := tasks.CreateTask(ctx, input)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s page=%d\n", task.ID, task.TaskType, task.Page)
	}
	return nil
}

// taskInputs expands flag values into one input per page.
func taskInputs(taskType, query, country, city, language, bucket string, pages int) ([]db.SearchTaskInput, error) {
	t := types.TaskType(strings.ToUpper(strings.TrimSpace(taskType)))
	if !t.Valid() {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("--query must not be empty")
	}
	if pages < 1 {
		return nil, fmt.Errorf("--pages must be >= 1")
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	hash := db.HashQuery(query, country, city, language)

	inputs := make([]db.SearchTaskInput, 0, pages)
	for page := 0; page < pages; page++ {
		inputs = append(inputs, db.SearchTaskInput{
			TaskType:    string(t),
			CountryCode: country,
			City:        strings.TrimSpace(city),
			Language:    language,
			QueryText:   query,
			QueryHash:   hash,
			Page:        page,
			TimeBucket:  bucket,
		})
	}
	return inputs, nil
}
