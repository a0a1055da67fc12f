package main

import (
	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/metrics"
	"github.com/jonathan/bizscout/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ops HTTP server",
	Long:  `Start an HTTP server that exposes health, job run progress, job request and task queue endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	srv := server.New(server.Config{
		Addr:    serveAddr,
		Metrics: metrics.NewPrometheusRecorder().Handler(),
		Logger:  logger,
	}, database, db.NewTaskStore(database, schedulePolicy(cfg)))

	return srv.Start(ctx)
}
