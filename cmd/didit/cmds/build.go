package cmds

import (
	"errors"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/diditerrors"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

var buildRef string

var buildCmd = &cobra.Command{
	Use:   "build KIND PROJ USERS [REV]",
	Short: "Build one repository in this process and print its record",
	Long: `
USERS are joined with "-". Without REV the head of --ref is built.
- Exits with 0 if the build produced an error-free record.
- Exits with 1 otherwise.`,
	Args: cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "buildCmd")
		defer span.End()

		spec, err := parseSpec(args)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid spec")
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

		if spec.Rev == "" {
			ref := buildRef
			if ref == "" {
				ref = repos.Branch()
			}
			rev, err := repos.Revision(ctx, spec, ref)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to resolve revision")
				return diditerrors.ExitErrorWrap(types.ExitErrored, err)
			}
			spec = spec.At(rev)
		}
		span.SetAttributes(attribute.String("spec", spec.String()))

		log := logger.ForBuild(string(types.NewBuildID(spec)))
		record := newPipeline(cfg, repos, results, runner).Run(ctx, spec, func(p types.Progress) {
			log.InfoContext(ctx, p.Message, "stage", p.Stage)
		})
		if err := printJSON(cmd.OutOrStdout(), record); err != nil {
			return err
		}

		if record.Failed() {
			err := diditerrors.ExitError{Code: types.ExitErrored, Err: errors.New(record.Error)}
			span.RecordError(err)
			span.SetStatus(codes.Error, "build failed")
			return err
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "built")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildRef, "ref", "", "Ref to build when no REV is given (default: the configured branch)")
}
