package cmds

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/maxg/didit-sub000/internal/config"
	"github.com/maxg/didit-sub000/internal/diditerrors"
	"github.com/maxg/didit-sub000/internal/logger"
	diditotel "github.com/maxg/didit-sub000/internal/otel"
	"github.com/maxg/didit-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/cmd/didit")

var (
	configDir string
	cfg       *config.Config

	otelShutdown func(context.Context) error
)

// Marks commands that only talk to a running coordinator and need no local config
const remoteAnnotation = "didit/remote"

var remote = map[string]string{remoteAnnotation: "true"}

var rootCmd = &cobra.Command{
	Use:           "didit",
	Short:         "Builds, tests and grades course repositories",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if _, ok := cmd.Annotations[remoteAnnotation]; ok {
			return nil
		}

		var paths []string
		if configDir != "" {
			paths = []string{configDir, "/etc/didit/", "."}
		}

		var err error
		cfg, err = config.Load(paths...)
		if err != nil {
			return diditerrors.ExitErrorWrap(types.ExitUsage, fmt.Errorf("failed to load config: %w", err))
		}
		logger.LogLevel.Set(slog.Level(cfg.Logging.App.Level))

		otelShutdown, err = diditotel.SetupOTelSDK(cmd.Context(), diditotel.Options{
			Role:           cmd.Name(),
			Semester:       cfg.Semester,
			UseOTLP:        cfg.Logging.UseOTLP,
			MetricInterval: cfg.Workflow.StatsInterval,
		})
		if err != nil {
			logger.Logger.Warn("failed to setup otel sdk", "error", err)
		}
		// commands spawned by a traced didit process (hooks, builds) continue its trace
		cmd.SetContext(diditotel.ExtractEnv(cmd.Context()))
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if otelShutdown == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(ctx); err != nil {
			logger.Logger.Warn("no clean shutdown for otel", "error", err)
		}
		return nil
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory holding didit.yaml, searched before /etc/didit/ and .")
}
