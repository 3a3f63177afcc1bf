package cmds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/config"
	"github.com/maxg/didit-sub000/internal/diditerrors"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/queue"
	"github.com/maxg/didit-sub000/internal/status"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/workerpool"
)

// Context errors mean an orderly stop, not a failure
func stopped(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Decide build workflows, run sweeps and serve status",
	Long: `
Runs the decider, the stats sampler, the sweep scheduler, the build request intake and the
status server. With the memory workflow backend a worker pool runs in the same process.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "coordinatorCmd")
		defer span.End()

		client := redisClient(cfg)
		service, err := workflowService(cfg, client)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct workflow service")
			return diditerrors.ExitErrorWrap(types.ExitUsage, err)
		}

		coord, err := newCoordinator(cfg, service)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct coordinator")
			return err
		}
		if err := coord.Register(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to register workflow types")
			return err
		}

		runner := command.NewShellExecutor()
		repos := newRepos(cfg, runner)
		results, err := newStore(cfg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open results")
			return err
		}

		scheduler := newScheduler(cfg, repos, results, coord)
		defer scheduler.Close()

		intake, err := queue.FromConfig(cfg.Intake, client)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct intake queue")
			return err
		}
		// the coordinator is the only consumer, so anything still processing was abandoned
		if rq, ok := intake.(*queue.RedisQueuer); ok {
			moved, err := rq.Requeue(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to requeue abandoned requests")
				return err
			}
			if moved > 0 {
				logger.Logger.InfoContext(ctx, "requeued abandoned build requests", "count", moved)
			}
		}

		var pool *workerpool.Pool
		if cfg.Workflow.Backend == config.WorkflowMemory {
			pool, err = newPool(cfg, service, newPipeline(cfg, repos, results, runner))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to construct worker pool")
				return err
			}
		}

		e := status.BuildEcho(logger.Logger)
		status.NewHandler(coord, scheduler).AddRoutes(e)

		span.AddEvent("initialized coordinator")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return stopped(coord.Run(gctx)) })
		g.Go(func() error {
			coord.RunStats(gctx)
			return nil
		})
		if intake != nil {
			g.Go(func() error { return stopped(coord.Intake(gctx, intake, repos, repos.Branch())) })
		}
		if pool != nil {
			logger.Logger.InfoContext(ctx, "running embedded worker pool", "backend", cfg.Workflow.Backend)
			g.Go(func() error { return stopped(pool.Run(gctx)) })
		}
		g.Go(func() error {
			err := e.Start(cfg.ListenAddress)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Logger.Info("got shutdown signal")
			return shutdown(coord.Close, e.Shutdown, pool)
		})

		if err := g.Wait(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "coordinator failed")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "coordinator stopped")
		return nil
	},
}

func shutdown(closeCoordinator func(), closeServer func(context.Context) error, pool *workerpool.Pool) error {
	ctx, cancel := context.WithTimeout(
		context.Background(),
		time.Second*time.Duration(cfg.Worker.GracefulShutdownSecs),
	)
	defer cancel()

	closeCoordinator()

	var errs error
	if err := closeServer(ctx); err != nil {
		errs = errors.Join(errs, err)
	}
	if pool != nil {
		if err := pool.Shutdown(ctx); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to shutdown worker pool gracefully: %w", err))
		}
	}
	return errs
}

func init() {
	rootCmd.AddCommand(coordinatorCmd)
}
