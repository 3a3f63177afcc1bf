package store

import (
	"context"
	"errors"
	"path"
	"slices"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/types"
)

// Sweep directories are named by their UTC timestamp in this layout
const SweepTimeLayout = "20060102T150405"

const (
	SweepFile  = "sweep.json"
	GradesFile = "grades.json"
)

func sweepDir(kind, proj string, when time.Time) string {
	return path.Join("sweeps", kind, proj, when.UTC().Format(SweepTimeLayout))
}

func milestoneDir(kind, proj, name string) string {
	return path.Join("milestones", kind, proj, name)
}

func sweepAttributes(kind, proj string, when time.Time) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("when", when.UTC().Format(time.RFC3339)),
	)
}

func (s *Store) SaveSweep(ctx context.Context, sweep *types.SweepRecord) error {
	_, span := tracer.Start(ctx, "Store.SaveSweep", sweepAttributes(sweep.Kind, sweep.Proj, sweep.When),
		trace.WithAttributes(attribute.Int("reporevs", len(sweep.RepoRevs))))
	defer span.End()

	if err := s.writeJSON(path.Join(sweepDir(sweep.Kind, sweep.Proj, sweep.When), SweepFile), sweep); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write sweep")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved sweep")
	return nil
}

func (s *Store) LoadSweep(ctx context.Context, kind, proj string, when time.Time) (*types.SweepRecord, error) {
	_, span := tracer.Start(ctx, "Store.LoadSweep", sweepAttributes(kind, proj, when))
	defer span.End()

	var sweep types.SweepRecord
	if err := s.readJSON(path.Join(sweepDir(kind, proj, when), SweepFile), &sweep); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read sweep")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "loaded sweep")
	return &sweep, nil
}

// Timestamps of every sweep of a project, oldest first
func (s *Store) ListSweeps(ctx context.Context, kind, proj string) ([]time.Time, error) {
	_, span := tracer.Start(ctx, "Store.ListSweeps", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
	))
	defer span.End()

	entries, err := afero.ReadDir(s.fs, path.Join("sweeps", kind, proj))
	if err != nil {
		if exists, _ := afero.DirExists(s.fs, path.Join("sweeps", kind, proj)); !exists {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "no sweeps")
			return []time.Time{}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list sweeps")
		return nil, err
	}

	whens := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		when, err := time.ParseInLocation(SweepTimeLayout, e.Name(), time.UTC)
		if err != nil || !e.IsDir() {
			continue
		}
		whens = append(whens, when)
	}
	slices.SortFunc(whens, time.Time.Compare)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed sweeps")
	return whens, nil
}

func (s *Store) SaveSweepGrades(ctx context.Context, kind, proj string, when time.Time, grades []types.RepoRevision) error {
	_, span := tracer.Start(ctx, "Store.SaveSweepGrades", sweepAttributes(kind, proj, when))
	defer span.End()

	if err := s.writeJSON(path.Join(sweepDir(kind, proj, when), GradesFile), grades); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write sweep grades")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved sweep grades")
	return nil
}

func (s *Store) LoadSweepGrades(ctx context.Context, kind, proj string, when time.Time) ([]types.RepoRevision, error) {
	_, span := tracer.Start(ctx, "Store.LoadSweepGrades", sweepAttributes(kind, proj, when))
	defer span.End()

	var grades []types.RepoRevision
	if err := s.readJSON(path.Join(sweepDir(kind, proj, when), GradesFile), &grades); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read sweep grades")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "loaded sweep grades")
	return grades, nil
}

// Named snapshot of a project's grades, kept independent of later sweeps
func (s *Store) SaveMilestone(ctx context.Context, kind, proj, name string, grades []types.RepoRevision) error {
	_, span := tracer.Start(ctx, "Store.SaveMilestone", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("milestone", name),
	))
	defer span.End()

	if name == "" || name != path.Base(name) {
		err := errors.New("invalid milestone name")
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid milestone name")
		return err
	}

	if err := s.writeJSON(path.Join(milestoneDir(kind, proj, name), GradesFile), grades); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write milestone")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved milestone")
	return nil
}

func (s *Store) LoadMilestone(ctx context.Context, kind, proj, name string) ([]types.RepoRevision, error) {
	_, span := tracer.Start(ctx, "Store.LoadMilestone", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("milestone", name),
	))
	defer span.End()

	var grades []types.RepoRevision
	if err := s.readJSON(path.Join(milestoneDir(kind, proj, name), GradesFile), &grades); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read milestone")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "loaded milestone")
	return grades, nil
}
