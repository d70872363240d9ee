package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"syncworker/internal/app"
	"syncworker/internal/job"
	"syncworker/internal/models"
	"syncworker/internal/scheduler"
)

var (
	syncFollow    bool
	syncStandard  bool
	syncFallback  string
	syncNoNetwork bool
)

var syncCmd = &cobra.Command{
	Use:       "sync <download|upload>",
	Short:     "Submit a sync job",
	Long:      `Builds a sync job descriptor and submits it to the queue. With --follow, progress is printed until the attempt finishes.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(job.TypeDownload), string(job.TypeUpload)},
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		d, err := buildDescriptor(args[0])
		if err != nil {
			return err
		}

		h, err := appInstance.Scheduler.Submit(cmd.Context(), d)
		if err != nil {
			return fmt.Errorf("failed to submit sync job: %w", err)
		}
		fmt.Printf("Submitted %s job %s to queue %s\n", d.Type(), h.JobID, h.Queue)

		if !syncFollow {
			return nil
		}
		return follow(cmd, appInstance, h)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&syncFollow, "follow", "f", false, "Print progress until the attempt finishes")
	syncCmd.Flags().BoolVar(&syncStandard, "standard", false, "Request standard instead of expedited execution")
	syncCmd.Flags().StringVar(&syncFallback, "fallback", string(job.FallbackRunAsNonExpedited), "What to do when expedited quota is exhausted: run_as_non_expedited or drop_work_request")
	syncCmd.Flags().BoolVar(&syncNoNetwork, "no-network-constraint", false, "Do not wait for network connectivity")
}

func buildDescriptor(jobType string) (job.Descriptor, error) {
	if !syncStandard && !syncNoNetwork && syncFallback == string(job.FallbackRunAsNonExpedited) {
		return job.NewSyncDescriptor(jobType)
	}
	var constraints []job.Constraint
	if !syncNoNetwork {
		constraints = append(constraints, job.ConstraintNetworkConnected)
	}
	return job.Build(jobType, constraints,
		job.BackoffPolicy{Kind: job.BackoffExponential, InitialDelay: 30000, Unit: time.Millisecond},
		job.PriorityFallback{Expedited: !syncStandard, Fallback: job.Fallback(syncFallback)},
	)
}

// follow prints reports until the first JobResult. Interrupting only stops
// following; the job keeps running.
func follow(cmd *cobra.Command, appInstance *app.App, h scheduler.AttemptHandle) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var last *models.Report
	for rep := range appInstance.Watcher.Watch(ctx, h) {
		rep := rep
		last = &rep
		if rep.Progress != nil {
			fmt.Printf("[%3d%%] %s\n", rep.Progress.Percent, rep.Progress.Message)
		}
	}
	if last == nil || !last.Done() {
		if ctx.Err() != nil {
			fmt.Println("Stopped following; the job continues in the background.")
			return nil
		}
		return errors.New("job disappeared from the queue before reporting a result")
	}

	if last.Result.Succeeded() {
		fmt.Printf("%s %s\n", color.GreenString("SUCCESS"), last.Result.Message)
		return nil
	}
	fmt.Printf("%s %s (will be retried with backoff)\n", color.RedString("FAILURE"), last.Result.Message)
	return nil
}
