package cmds

import (
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/status"
	"github.com/maxg/didit-sub000/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Build every repository of a project as of a point in time",
}

var sweepScheduleCmd = &cobra.Command{
	Use:   "schedule KIND PROJ WHEN",
	Short: "Have the running coordinator sweep at WHEN",
	Long: `
WHEN is RFC 3339 or local time as 2006-01-02T15:04. Pending sweeps live in the coordinator's
memory and are lost if it restarts.`,
	Args:        cobra.ExactArgs(3),
	Annotations: remote,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "sweepScheduleCmd")
		defer span.End()

		when, err := parseWhen(args[2])
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad time")
			return err
		}

		if err := status.NewClient(coordinatorURL).ScheduleSweep(ctx, args[0], args[1], when); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to schedule sweep")
			return err
		}

		logger.Logger.InfoContext(ctx, "scheduled sweep", "kind", args[0], "proj", args[1], "when", when)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "scheduled sweep")
		return nil
	},
}

// Scheduler whose builds run in this process
func localScheduler() (*sweep.Scheduler, error) {
	runner := command.NewShellExecutor()
	repos := newRepos(cfg, runner)
	results, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	builds := newLocalBuilds(newPipeline(cfg, repos, results, runner), cfg.Worker.Concurrency)
	return newScheduler(cfg, repos, results, builds), nil
}

var sweepStartCmd = &cobra.Command{
	Use:   "start KIND PROJ WHEN",
	Short: "Sweep now in this process, building any revision not already built",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "sweepStartCmd")
		defer span.End()

		when, err := parseWhen(args[2])
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad time")
			return err
		}
		span.SetAttributes(attribute.String("kind", args[0]), attribute.String("proj", args[1]))

		scheduler, err := localScheduler()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct scheduler")
			return err
		}
		defer scheduler.Close()

		grades, err := scheduler.StartSweep(ctx, args[0], args[1], when)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sweep failed")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "swept")
		return printJSON(cmd.OutOrStdout(), grades)
	},
}

var sweepRebuildCmd = &cobra.Command{
	Use:   "rebuild KIND PROJ WHEN",
	Short: "Grade an existing sweep again against the current staff revision",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "sweepRebuildCmd")
		defer span.End()

		when, err := parseWhen(args[2])
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad time")
			return err
		}

		scheduler, err := localScheduler()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct scheduler")
			return err
		}
		defer scheduler.Close()

		grades, err := scheduler.RebuildSweep(ctx, args[0], args[1], when)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rebuild failed")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "rebuilt sweep")
		return printJSON(cmd.OutOrStdout(), grades)
	},
}

var sweepMilestoneCmd = &cobra.Command{
	Use:   "milestone KIND PROJ WHEN NAME",
	Short: "Save a sweep's grades as a named milestone",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "sweepMilestoneCmd")
		defer span.End()

		when, err := parseWhen(args[2])
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad time")
			return err
		}

		scheduler, err := localScheduler()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct scheduler")
			return err
		}
		defer scheduler.Close()

		if err := scheduler.SnapshotMilestone(ctx, args[0], args[1], when, args[3]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to save milestone")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "saved milestone")
		return nil
	},
}

var catchupHours int

var catchupCmd = &cobra.Command{
	Use:         "catchup KIND PROJ",
	Short:       "Have the running coordinator build every repository's head over the next hours",
	Args:        cobra.ExactArgs(2),
	Annotations: remote,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "catchupCmd")
		defer span.End()

		n, err := status.NewClient(coordinatorURL).ScheduleCatchups(ctx, args[0], args[1], catchupHours)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to schedule catch-ups")
			return err
		}

		logger.Logger.InfoContext(ctx, "scheduled catch-up builds", "kind", args[0], "proj", args[1], "repos", n, "hours", catchupHours)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "scheduled catch-ups")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd, catchupCmd)
	sweepCmd.AddCommand(sweepScheduleCmd, sweepStartCmd, sweepRebuildCmd, sweepMilestoneCmd)

	addCoordinatorFlag(sweepScheduleCmd)
	addCoordinatorFlag(catchupCmd)
	catchupCmd.Flags().IntVar(&catchupHours, "hours", 6, "Window to spread the builds across")
}
