package cmds

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/config"
	"github.com/maxg/didit-sub000/internal/diditerrors"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/workerpool"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run builds handed out by the workflow service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "workerCmd")
		defer span.End()

		if cfg.Workflow.Backend == config.WorkflowMemory {
			err := diditerrors.ExitErrorWrap(types.ExitUsage, errNeedsSharedBackend)
			span.RecordError(err)
			span.SetStatus(codes.Error, "worker needs a shared workflow backend")
			return err
		}

		service, err := workflowService(cfg, redisClient(cfg))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct workflow service")
			return diditerrors.ExitErrorWrap(types.ExitUsage, err)
		}

		runner := command.NewShellExecutor()
		results, err := newStore(cfg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open results")
			return err
		}

		pool, err := newPool(cfg, service, newPipeline(cfg, newRepos(cfg, runner), results, runner))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct worker pool")
			return err
		}

		span.SetAttributes(
			attribute.String("identity", workerpool.Identity()),
			attribute.Int64("concurrency", cfg.Worker.Concurrency),
		)

		// polls stop on Shutdown rather than on the signal, so running builds can finish
		runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
		drained := make(chan struct{})
		go func() {
			defer close(drained)
			defer cancelRun()
			select {
			case <-ctx.Done():
			case <-runCtx.Done():
				return
			}
			logger.Logger.Info("got shutdown signal, waiting for running builds")
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				time.Second*time.Duration(cfg.Worker.GracefulShutdownSecs),
			)
			defer cancel()
			if err := pool.Shutdown(shutdownCtx); err != nil {
				logger.Logger.Error("builds still running at shutdown", "error", err)
			}
		}()

		err = stopped(pool.Run(runCtx))
		cancelRun()
		<-drained
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "worker pool failed")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
