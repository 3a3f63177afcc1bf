package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

var bootstrapRequester string

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create starting and student repositories",
}

var bootstrapStartingCmd = &cobra.Command{
	Use:   "starting KIND PROJ",
	Short: "Create the starting repository for a project from the staff materials",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "bootstrapStartingCmd")
		defer span.End()

		repos := newRepos(cfg, command.NewShellExecutor())
		path, err := repos.CreateStartingRepo(ctx, args[0], args[1], bootstrapRequester)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create starting repository")
			return err
		}

		logger.Logger.InfoContext(ctx, "created starting repository", "path", path)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "created starting repository")
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

var bootstrapStudentCmd = &cobra.Command{
	Use:   "student KIND PROJ USERS",
	Short: "Create a student repository from the project's starting repository",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "bootstrapStudentCmd")
		defer span.End()

		spec, err := parseSpec(args)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid spec")
			return err
		}

		repos := newRepos(cfg, command.NewShellExecutor())
		path, err := repos.CreateStudentRepo(ctx, spec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create student repository")
			return err
		}

		logger.Logger.InfoContext(ctx, "created student repository", "spec", spec.String(), "path", path)
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "created student repository")
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
	bootstrapCmd.AddCommand(bootstrapStartingCmd, bootstrapStudentCmd)
	bootstrapStartingCmd.Flags().StringVar(&bootstrapRequester, "requester", "", "Staff user creating the repository (required)")
	if err := bootstrapStartingCmd.MarkFlagRequired("requester"); err != nil {
		logger.Logger.Error("error setting flag required", "flag", "requester", "error", err)
		os.Exit(types.ExitErrored)
	}
}
