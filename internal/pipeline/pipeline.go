package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/buildtool"
	"github.com/maxg/didit-sub000/internal/diditerrors"
	"github.com/maxg/didit-sub000/internal/grader"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/pipeline")

// Step names
const (
	StepWorkdir   = "workdir"
	StepResultdir = "resultdir"
	StepClone     = "clone"
	StepStaff     = "staff"
	StepCompile   = "compile"
	StepPublic    = "public"
	StepHidden    = "hidden"
	StepGrade     = "grade"
	StepSave      = "save"
)

// What a failed step reports in the build record. The raw cause is only logged.
var messages = map[string]string{
	StepWorkdir:   "Error creating working directory",
	StepResultdir: "Error creating result directory",
	StepClone:     "Error fetching student code",
	StepStaff:     "Error fetching staff code",
	StepCompile:   "Error running compiler",
	StepPublic:    "Error running public tests",
	StepHidden:    "Error running hidden tests",
	StepGrade:     "Error grading",
	StepSave:      "Error saving results",
}

type Source interface {
	Clone(ctx context.Context, spec types.Spec, dir string) (*types.CommitInfo, error)
	ExportStaff(ctx context.Context, kind, proj, dest string) (string, error)
}

type Tool interface {
	Compile(ctx context.Context, dir string) (*types.CompileResult, error)
	Test(ctx context.Context, dir string, target buildtool.Target) (*types.TestResult, error)
}

type Results interface {
	PrepareBuild(ctx context.Context, spec types.Spec) (string, error)
	SaveBuild(ctx context.Context, record *types.BuildRecord) error
}

type Options struct {
	// Parent of per-build working directories
	WorkRoot string
	// Rubric file name within the working tree
	Rubric string
	// How long a successful build's working directory outlives the build
	GracePeriod time.Duration
}

// Runs one build end to end
type Pipeline struct {
	source  Source
	tool    Tool
	results Results
	opts    Options
}

func New(source Source, tool Tool, results Results, opts Options) *Pipeline {
	return &Pipeline{source: source, tool: tool, results: results, opts: opts}
}

type graded struct {
	report *types.GradeReport
	// False when the tree had no rubric
	rubric bool
}

type build struct {
	p          *Pipeline
	spec       types.Spec
	started    time.Time
	onProgress func(types.Progress)
	names      []string
}

func (b *build) progress(stage, message, rev string) {
	if b.onProgress != nil {
		b.onProgress(types.Progress{Stage: stage, Message: message, Rev: rev})
	}
}

func (b *build) graph() (*Graph, error) {
	return NewGraph(
		Step{Name: StepWorkdir, Run: b.workdir},
		Step{Name: StepResultdir, Run: b.resultdir},
		Step{Name: StepClone, Hard: []string{StepWorkdir, StepResultdir}, Run: b.clone},
		Step{Name: StepStaff, Hard: []string{StepWorkdir, StepClone}, Run: b.staff},
		Step{Name: StepCompile, Hard: []string{StepWorkdir, StepStaff}, Run: b.compile},
		Step{Name: StepPublic, Hard: []string{StepWorkdir, StepCompile}, Run: b.test(buildtool.TargetPublic)},
		Step{Name: StepHidden, Hard: []string{StepWorkdir, StepCompile}, Soft: []string{StepPublic}, Run: b.test(buildtool.TargetHidden)},
		Step{Name: StepGrade, Hard: []string{StepWorkdir, StepPublic, StepHidden}, Run: b.grade},
		Step{
			Name: StepSave,
			Hard: []string{StepResultdir},
			Soft: []string{StepWorkdir, StepClone, StepStaff, StepCompile, StepPublic, StepHidden, StepGrade},
			Run:  b.save,
		},
	)
}

func (b *build) workdir(_ context.Context, _ Outcomes) (any, error) {
	if err := os.MkdirAll(b.p.opts.WorkRoot, 0o755); err != nil {
		return nil, err
	}
	return os.MkdirTemp(b.p.opts.WorkRoot, string(types.NewBuildID(b.spec))+"-")
}

func (b *build) resultdir(ctx context.Context, _ Outcomes) (any, error) {
	return b.p.results.PrepareBuild(ctx, b.spec)
}

func (b *build) clone(ctx context.Context, in Outcomes) (any, error) {
	return b.p.source.Clone(ctx, b.spec, Value[string](in, StepWorkdir))
}

func (b *build) staff(ctx context.Context, in Outcomes) (any, error) {
	dir := Value[string](in, StepWorkdir)
	// build settings and the rubric come only from the staff export
	for _, name := range []string{buildtool.SettingsFile, b.p.opts.Rubric} {
		if name == "" {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	rev, err := b.p.source.ExportStaff(ctx, b.spec.Kind, b.spec.Proj, dir)
	if err != nil {
		return nil, err
	}
	source := Value[*types.CommitInfo](in, StepClone)
	b.progress(StepStaff, "Checked out "+source.Rev, source.Rev)
	return rev, nil
}

func (b *build) compile(ctx context.Context, in Outcomes) (any, error) {
	result, err := b.p.tool.Compile(ctx, Value[string](in, StepWorkdir))
	if err != nil {
		return nil, err
	}
	if !result.Success {
		b.progress(StepCompile, "Compilation failed", "")
	}
	return result, nil
}

func (b *build) test(target buildtool.Target) func(context.Context, Outcomes) (any, error) {
	return func(ctx context.Context, in Outcomes) (any, error) {
		return b.p.tool.Test(ctx, Value[string](in, StepWorkdir), target)
	}
}

func (b *build) grade(_ context.Context, in Outcomes) (any, error) {
	var suites []types.TestSuite
	suites = append(suites, Value[*types.TestResult](in, StepPublic).Suites...)
	suites = append(suites, Value[*types.TestResult](in, StepHidden).Suites...)

	f, err := os.Open(filepath.Join(Value[string](in, StepWorkdir), b.p.opts.Rubric))
	if errors.Is(err, fs.ErrNotExist) {
		return graded{report: grader.Grade(b.spec, nil, suites)}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rubric, err := grader.ParseRubric(f)
	if err != nil {
		return nil, err
	}
	return graded{report: grader.Grade(b.spec, rubric, suites), rubric: true}, nil
}

// First failure in step order, skipping failures that only echo an upstream one
func firstFailure(names []string, in Outcomes) (string, error) {
	for _, name := range names {
		out, ok := in[name]
		if !ok || out.State != Failed || errors.Is(out.Err, ErrUpstreamFailed) {
			continue
		}
		return name, out.Err
	}
	return "", nil
}

func (b *build) record(names []string, in Outcomes) *types.BuildRecord {
	record := &types.BuildRecord{
		Spec:     b.spec,
		Started:  b.started,
		Finished: time.Now().UTC(),
		Detail:   &types.BuildDetail{},
	}

	record.Source = Value[*types.CommitInfo](in, StepClone)
	record.StaffRevision = Value[string](in, StepStaff)

	if compile := Value[*types.CompileResult](in, StepCompile); compile != nil {
		record.CompileSucceeded = compile.Success
		record.Detail.Compile = compile
	}
	if public := Value[*types.TestResult](in, StepPublic); public != nil {
		record.PublicSucceeded = public.Success
		record.Detail.Public = public
	}
	if hidden := Value[*types.TestResult](in, StepHidden); hidden != nil {
		record.HiddenSucceeded = hidden.Success
		record.Detail.Hidden = hidden
	}
	if g, ok := in[StepGrade].Value.(graded); ok && in[StepGrade].State == Done {
		record.Detail.Grade = g.report
		if g.rubric {
			record.Grade = &types.Score{Score: g.report.Score, OutOf: g.report.OutOf}
		}
	}

	if stage, err := firstFailure(names, in); err != nil {
		record.Error = messages[stage]
		// a failed build is never graded
		record.Grade = nil
	}
	return record
}

func (b *build) save(ctx context.Context, in Outcomes) (any, error) {
	record := b.record(b.names, in)
	if err := b.p.results.SaveBuild(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Builds a pinned spec. Always returns a record: failures are reported in its Error and the
// underlying causes are logged.
func (p *Pipeline) Run(ctx context.Context, spec types.Spec, onProgress func(types.Progress)) *types.BuildRecord {
	buildID := string(types.NewBuildID(spec))
	ctx, span := tracer.Start(ctx, "Pipeline.Run", trace.WithAttributes(
		attribute.String("build.id", buildID),
		attribute.String("spec", spec.String()),
	))
	defer span.End()

	log := logger.ForBuild(buildID)
	b := &build{p: p, spec: spec, started: time.Now().UTC(), onProgress: onProgress}

	graph, err := b.graph()
	if err != nil {
		log.ErrorContext(ctx, "invalid pipeline", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid pipeline")
		return &types.BuildRecord{Spec: spec, Started: b.started, Finished: time.Now().UTC(), Error: "Error starting build"}
	}

	b.names = graph.Names()
	outcomes := graph.Execute(ctx)
	for _, name := range b.names {
		out := outcomes[name]
		span.SetAttributes(attribute.String("step."+name, out.State.String()))
		if out.State == Failed && !errors.Is(out.Err, ErrUpstreamFailed) {
			log.ErrorContext(ctx, "build step failed", "error", diditerrors.StageErrorWrap(buildID, name, out.Err))
		}
	}

	record := Value[*types.BuildRecord](outcomes, StepSave)
	if record == nil {
		record = b.record(b.names, outcomes)
	}

	if workdir := Value[string](outcomes, StepWorkdir); workdir != "" && !record.Failed() {
		time.AfterFunc(p.opts.GracePeriod, func() {
			if err := os.RemoveAll(workdir); err != nil {
				log.Warn("failed to remove working directory", "dir", workdir, "error", err)
			}
		})
	}

	if record.Failed() {
		span.RecordError(errors.New(record.Error))
		span.SetStatus(codes.Error, record.Error)
	} else {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "built")
	}
	log.InfoContext(ctx, "build finished",
		"compile", record.CompileSucceeded,
		"public", record.PublicSucceeded,
		"hidden", record.HiddenSucceeded,
		"error", record.Error)
	return record
}
