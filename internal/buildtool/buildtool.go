package buildtool

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/command"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/buildtool")

type Target string

const (
	TargetPublic Target = "public"
	TargetHidden Target = "hidden"
)

// Runs the project's build tool in a prepared working directory
type Builder struct {
	executor command.Executor
	defaults Settings
}

func New(executor command.Executor, defaults Settings) *Builder {
	return &Builder{executor: executor, defaults: defaults}
}

func (s Settings) target(t Target) string {
	if t == TargetHidden {
		return s.Targets.Hidden
	}
	return s.Targets.Public
}

func (s Settings) reportPath(dir, target string) string {
	return filepath.Join(dir, s.ReportDir, target+".xml")
}

func (b *Builder) run(ctx context.Context, dir string, settings Settings, target string) (*command.Result, error) {
	report := settings.reportPath(dir, target)
	if err := os.MkdirAll(filepath.Dir(report), 0o755); err != nil {
		return nil, err
	}

	replacer := strings.NewReplacer("{target}", target, "{report}", report, "{dir}", dir)
	args := make([]string, 0, len(settings.Args))
	for _, a := range settings.Args {
		args = append(args, replacer.Replace(a))
	}

	cmd := command.New(settings.Program, args...).
		In(dir).
		WithEnv("DIDIT_TARGET="+target, "DIDIT_REPORT="+report)
	return b.executor.Execute(ctx, cmd)
}

func combinedLog(result *command.Result) string {
	var log strings.Builder
	log.Write(result.Stdout)
	if len(result.Stdout) > 0 && len(result.Stderr) > 0 {
		log.WriteString("\n")
	}
	log.Write(result.Stderr)
	return log.String()
}

// Runs the compile target
func (b *Builder) Compile(ctx context.Context, dir string) (*types.CompileResult, error) {
	ctx, span := tracer.Start(ctx, "Builder.Compile", trace.WithAttributes(
		attribute.String("dir", dir),
	))
	defer span.End()

	settings, err := LoadSettings(dir, b.defaults)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load build settings")
		return nil, err
	}

	result, err := b.run(ctx, dir, settings, settings.Targets.Compile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to run build tool")
		return nil, err
	}

	span.SetAttributes(attribute.Int("exitCode", result.ExitCode))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "compiled")
	return &types.CompileResult{Success: result.ExitCode == 0, Log: combinedLog(result)}, nil
}

// Runs a test target and parses its report. A target that leaves no report yields no suites.
func (b *Builder) Test(ctx context.Context, dir string, t Target) (*types.TestResult, error) {
	ctx, span := tracer.Start(ctx, "Builder.Test", trace.WithAttributes(
		attribute.String("dir", dir),
		attribute.String("target", string(t)),
	))
	defer span.End()

	settings, err := LoadSettings(dir, b.defaults)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load build settings")
		return nil, err
	}

	target := settings.target(t)
	report := settings.reportPath(dir, target)
	// a stale report must never be mistaken for this run's
	if err := os.Remove(report); err != nil && !errors.Is(err, fs.ErrNotExist) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clear old report")
		return nil, err
	}

	result, err := b.run(ctx, dir, settings, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to run build tool")
		return nil, err
	}

	suites := []types.TestSuite{}
	f, err := os.Open(report)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Logger.DebugContext(ctx, "test target left no report", "target", target, "dir", dir)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open report")
		return nil, err
	default:
		defer f.Close()
		suites, err = ParseReport(f)
		if err != nil {
			logger.Logger.ErrorContext(ctx, "malformed test report", "target", target, "report", report, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse report")
			return nil, err
		}
	}

	success := result.ExitCode == 0
	for _, s := range suites {
		for _, c := range s.TestCases {
			if c.Outcome != types.OutcomePass {
				success = false
			}
		}
	}

	span.SetAttributes(attribute.Int("exitCode", result.ExitCode), attribute.Int("suites", len(suites)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "tested")
	return &types.TestResult{Success: success, Log: combinedLog(result), Suites: suites}, nil
}
