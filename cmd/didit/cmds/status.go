package cmds

import (
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/maxg/didit-sub000/internal/status"
)

var coordinatorURL string

// Adds the flag naming the running coordinator's status server
func addCoordinatorFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&coordinatorURL, "coordinator", "http://localhost:1323", "Base URL of the running coordinator")
}

var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show a running coordinator's workflow counts and pending sweeps",
	Args:        cobra.NoArgs,
	Annotations: remote,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "statusCmd")
		defer span.End()

		client := status.NewClient(coordinatorURL)
		stats, err := client.Stats(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch stats")
			return err
		}
		scheduled, err := client.Scheduled(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch scheduled sweeps")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "fetched status")
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"stats":     stats,
			"scheduled": scheduled,
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	addCoordinatorFlag(statusCmd)
}
