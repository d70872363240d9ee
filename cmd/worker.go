package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"syncworker/internal/app"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background sync worker",
	Long: `Starts the Asynq worker process that executes sync jobs. Attempts wait until
their constraints hold, failed attempts are retried with the job's backoff
policy, and progress is written back for submitters to poll.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}

		if err := runWorker(cmd, appInstance); err != nil {
			log.Errorf("Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().Int("concurrency", 0, "Number of concurrent attempts (overrides worker.concurrency)")
	configKeys["concurrency"] = "worker.concurrency"
	workerCmd.Flags().String("backend", "", "Sync backend base URL (overrides backend.base_url)")
	configKeys["backend"] = "backend.base_url"
}

// runWorker builds the worker and blocks until SIGINT/SIGTERM.
func runWorker(cmd *cobra.Command, appInstance *app.App) error {
	cfg := appInstance.Config
	w, err := appInstance.NewWorker(cmd.Context())
	if err != nil {
		return err
	}
	defer w.Store.Close()

	log.WithFields(log.Fields{
		"concurrency": cfg.Worker.Concurrency,
		"queues":      cfg.Worker.Queues,
		"backend":     cfg.Backend.BaseURL,
	}).Info("Starting sync worker")

	// Run blocks until a shutdown signal is received and waits for active
	// attempts up to worker.shutdown_timeout.
	if err := w.Server.Run(w.Mux); err != nil {
		return fmt.Errorf("failed to run Asynq server: %w", err)
	}

	log.Info("Worker shutdown complete.")
	return nil
}
