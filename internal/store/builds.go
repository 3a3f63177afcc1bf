package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
)

const ResultFile = "result.json"

// Artifact names within a build directory
const (
	CompileLog  = "compile.txt"
	PublicJSON  = "public.json"
	PublicLog   = "public.txt"
	HiddenJSON  = "hidden.json"
	HiddenLog   = "hidden.txt"
	GradeReport = "grade.json"
)

var artifactNames = []string{CompileLog, PublicJSON, PublicLog, HiddenJSON, HiddenLog, GradeReport}

func (s *Store) buildDir(spec types.Spec) string {
	return path.Join(s.semester, spec.Kind, spec.Proj, spec.UsersJoined(), spec.Rev)
}

func specAttributes(spec types.Spec) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("kind", spec.Kind),
		attribute.String("proj", spec.Proj),
		attribute.String("users", spec.UsersJoined()),
		attribute.String("rev", spec.Rev),
	)
}

// Creates the result directory of a pinned spec and returns its path within the store
func (s *Store) PrepareBuild(ctx context.Context, spec types.Spec) (string, error) {
	_, span := tracer.Start(ctx, "Store.PrepareBuild", specAttributes(spec))
	defer span.End()

	if spec.Rev == "" {
		err := errors.New("cannot prepare results for a spec without a revision")
		span.RecordError(err)
		span.SetStatus(codes.Error, "spec has no rev")
		return "", err
	}

	dir := s.buildDir(spec)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create result directory")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "prepared result directory")
	return dir, nil
}

func artifacts(detail *types.BuildDetail) (map[string][]byte, error) {
	out := map[string][]byte{}
	if detail == nil {
		return out, nil
	}

	if detail.Compile != nil {
		out[CompileLog] = []byte(detail.Compile.Log)
	}
	for _, stage := range []struct {
		result    *types.TestResult
		json, log string
	}{
		{detail.Public, PublicJSON, PublicLog},
		{detail.Hidden, HiddenJSON, HiddenLog},
	} {
		if stage.result == nil {
			continue
		}
		suites, err := json.MarshalIndent(stage.result.Suites, "", "  ")
		if err != nil {
			return nil, err
		}
		out[stage.json] = suites
		out[stage.log] = []byte(stage.result.Log)
	}
	if detail.Grade != nil {
		grade, err := json.MarshalIndent(detail.Grade, "", "  ")
		if err != nil {
			return nil, err
		}
		out[GradeReport] = grade
	}
	return out, nil
}

// Writes the record's artifacts and then result.json, replacing any previous build of the
// same spec
func (s *Store) SaveBuild(ctx context.Context, record *types.BuildRecord) error {
	ctx, span := tracer.Start(ctx, "Store.SaveBuild", specAttributes(record.Spec))
	defer span.End()

	dir := s.buildDir(record.Spec)
	files, err := artifacts(record.Detail)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode artifacts")
		return err
	}

	// a rerun that stopped early must not inherit the previous run's later stages
	for _, name := range artifactNames {
		if _, ok := files[name]; ok {
			continue
		}
		if err := s.fs.Remove(path.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to remove stale artifact")
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}

	for name, data := range files {
		if err := s.writeFile(path.Join(dir, name), data); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to write artifact")
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}

	result, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode record")
		return err
	}
	if err := s.writeFile(path.Join(dir, ResultFile), result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write record")
		return err
	}
	files[ResultFile] = result

	if s.archive != nil {
		s.mirror(ctx, dir, files)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved build")
	return nil
}

// Record of a pinned spec without its artifacts
func (s *Store) LoadBuild(ctx context.Context, spec types.Spec) (*types.BuildRecord, error) {
	ctx, span := tracer.Start(ctx, "Store.LoadBuild", specAttributes(spec))
	defer span.End()

	file := path.Join(s.buildDir(spec), ResultFile)
	data, err := s.readFile(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read record")
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Logger.ErrorContext(ctx, "unparseable build record", "file", file, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "record is not json")
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, file, err)
	}

	if err := BuildRecordSchema.Validate(raw); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			for _, e := range validationErr.BasicOutput().Errors {
				logger.Logger.ErrorContext(ctx, "build record failed schema",
					"file", file, "keyword", e.KeywordLocation, "instance", e.InstanceLocation, "error", e.Error)
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "record failed schema")
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, file, err)
	}

	var record types.BuildRecord
	if err := json.Unmarshal(data, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode record")
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, file, err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "loaded build")
	return &record, nil
}

// Whether a pinned spec has a saved record
func (s *Store) HasBuild(ctx context.Context, spec types.Spec) (bool, error) {
	_, span := tracer.Start(ctx, "Store.HasBuild", specAttributes(spec))
	defer span.End()

	exists, err := afero.Exists(s.fs, path.Join(s.buildDir(spec), ResultFile))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to stat record")
		return false, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "checked for record")
	return exists, nil
}

// Raw bytes of one named artifact of a build
func (s *Store) Artifact(ctx context.Context, spec types.Spec, name string) ([]byte, error) {
	_, span := tracer.Start(ctx, "Store.Artifact", specAttributes(spec), trace.WithAttributes(
		attribute.String("artifact", name),
	))
	defer span.End()

	if name != path.Base(name) || name == ResultFile {
		err := fmt.Errorf("%w: artifact %q", ErrNotFound, name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad artifact name")
		return nil, err
	}

	data, err := s.readFile(path.Join(s.buildDir(spec), name))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read artifact")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "read artifact")
	return data, nil
}

// Record with every artifact that exists re-attached as its Detail
func (s *Store) LoadBuildDetail(ctx context.Context, spec types.Spec) (*types.BuildRecord, error) {
	ctx, span := tracer.Start(ctx, "Store.LoadBuildDetail", specAttributes(spec))
	defer span.End()

	record, err := s.LoadBuild(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load record")
		return nil, err
	}

	dir := s.buildDir(spec)
	detail := &types.BuildDetail{}

	if log, err := s.readFile(path.Join(dir, CompileLog)); err == nil {
		detail.Compile = &types.CompileResult{Log: string(log), Success: record.CompileSucceeded}
	} else if !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read compile log")
		return nil, err
	}

	for _, stage := range []struct {
		dest      **types.TestResult
		json, log string
		success   bool
	}{
		{&detail.Public, PublicJSON, PublicLog, record.PublicSucceeded},
		{&detail.Hidden, HiddenJSON, HiddenLog, record.HiddenSucceeded},
	} {
		var suites []types.TestSuite
		err := s.readJSON(path.Join(dir, stage.json), &suites)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read test suites")
			return nil, err
		}

		result := &types.TestResult{Suites: suites, Success: stage.success}
		if log, err := s.readFile(path.Join(dir, stage.log)); err == nil {
			result.Log = string(log)
		}
		*stage.dest = result
	}

	var grade types.GradeReport
	err = s.readJSON(path.Join(dir, GradeReport), &grade)
	switch {
	case err == nil:
		detail.Grade = &grade
	case !errors.Is(err, ErrNotFound):
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read grade report")
		return nil, err
	}

	record.Detail = detail
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "loaded build detail")
	return record, nil
}
