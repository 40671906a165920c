package cmd

import (
	"context"
	"errors"
	"fmt"

	"inventory-sync/core/bulk"
	"inventory-sync/feature/inventory"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// jobCmd is the parent command for bulk job operations.
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect or cancel the active bulk job",
}

var jobStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active bulk job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJob(cmd, func(ctx context.Context, a *app) (bulk.Job, error) {
			return a.service.CurrentJob(ctx)
		})
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the active bulk job",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJob(cmd, func(ctx context.Context, a *app) (bulk.Job, error) {
			return a.service.CancelCurrent(ctx)
		})
	},
}

func init() {
	jobCmd.AddCommand(jobStatusCmd, jobCancelCmd)
	RootCmd.AddCommand(jobCmd)
}

func withJob(cmd *cobra.Command, fn func(context.Context, *app) (bulk.Job, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := fn(ctx, a)
	if errors.Is(err, inventory.ErrNoActiveJob) {
		a.logger.Info("No active bulk job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("job %s failed: %w", cmd.Name(), err)
	}

	a.logger.Info("Bulk job",
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("status", string(job.Status)),
		zap.Int64("objects", job.ObjectCount),
		zap.String("error_code", job.ErrorCode),
	)
	return nil
}
