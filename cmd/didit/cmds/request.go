package cmds

import (
	"errors"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/maxg/didit-sub000/internal/diditerrors"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/queue"
	"github.com/maxg/didit-sub000/internal/types"
)

var requestRef string

var requestCmd = &cobra.Command{
	Use:   "request KIND PROJ USERS [REV]",
	Short: "Ask the coordinator for a build through the intake queue",
	Long: `
Used by repository hooks. Returns once the request is queued. Without REV the coordinator
builds the head of --ref.`,
	Args: cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "requestCmd")
		defer span.End()

		spec, err := parseSpec(args)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid spec")
			return err
		}
		span.SetAttributes(attribute.String("spec", spec.String()))

		q, err := queue.FromConfig(cfg.Intake, redisClient(cfg))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct intake queue")
			return err
		}
		if q == nil {
			err := diditerrors.ExitErrorWrap(types.ExitUsage, errors.New("no intake queue is configured"))
			span.RecordError(err)
			span.SetStatus(codes.Error, "no intake queue")
			return err
		}

		if err := q.Enqueue(ctx, types.BuildRequest{Spec: spec, Ref: requestRef}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to enqueue request")
			return err
		}

		logger.Logger.InfoContext(ctx, "requested build", "spec", spec.String(), "ref", requestRef)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "requested build")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().StringVar(&requestRef, "ref", "", "Ref to build when no REV is given")
}
