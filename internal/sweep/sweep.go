package sweep

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/vcs"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/sweep")

var ErrTooFarInFuture = errors.New("sweep is too far in the future")

//go:generate mockgen -destination ./mock/mock.go -package mock . Repos,Results,Builds

type Repos interface {
	FindRepos(ctx context.Context, q vcs.RepoQuery) ([]types.Spec, error)
	RevisionAsOf(ctx context.Context, spec types.Spec, when time.Time) (string, error)
	Revision(ctx context.Context, spec types.Spec, ref string) (string, error)
	StaffRevision(ctx context.Context) (string, error)
	Branch() string
}

type Results interface {
	SaveSweep(ctx context.Context, sweep *types.SweepRecord) error
	LoadSweep(ctx context.Context, kind, proj string, when time.Time) (*types.SweepRecord, error)
	SaveSweepGrades(ctx context.Context, kind, proj string, when time.Time, grades []types.RepoRevision) error
	LoadSweepGrades(ctx context.Context, kind, proj string, when time.Time) ([]types.RepoRevision, error)
	SaveMilestone(ctx context.Context, kind, proj, name string, grades []types.RepoRevision) error
	LoadBuild(ctx context.Context, spec types.Spec) (*types.BuildRecord, error)
}

type Builds interface {
	StartBuild(ctx context.Context, spec types.Spec) (*coordinator.Monitor, error)
}

type Options struct {
	Now func() time.Time
	// Accounts whose repositories sort after every student's
	IsStaff func(user string) bool
	// Farthest a sweep may be scheduled ahead
	Horizon time.Duration
	// How long to wait for a build's terminal event before polling for its record
	BuildTimeout time.Duration
	RecordWait   time.Duration
	RecordPoll   time.Duration
	// Bound on concurrent revision lookups
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.IsStaff == nil {
		o.IsStaff = func(string) bool { return false }
	}
	if o.Horizon == 0 {
		o.Horizon = 14 * 24 * time.Hour
	}
	if o.BuildTimeout == 0 {
		o.BuildTimeout = 30 * time.Minute
	}
	if o.RecordWait == 0 {
		o.RecordWait = 30 * time.Minute
	}
	if o.RecordPoll == 0 {
		o.RecordPoll = 30 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	return o
}

type timer struct {
	entry types.ScheduledSweep
	t     *time.Timer
}

// Drives sweeps and catch-up builds. Pending timers live only in this process.
type Scheduler struct {
	repos    Repos
	results  Results
	builds   Builds
	opts     Options
	inflight map[types.BuildID]*Promise
	timers   map[*timer]struct{}
	catchups map[*time.Timer]struct{}
	mu       sync.Mutex
}

func New(repos Repos, results Results, builds Builds, opts Options) *Scheduler {
	return &Scheduler{
		repos:    repos,
		results:  results,
		builds:   builds,
		opts:     opts.withDefaults(),
		inflight: map[types.BuildID]*Promise{},
		timers:   map[*timer]struct{}{},
		catchups: map[*time.Timer]struct{}{},
	}
}

func (s *Scheduler) isStaff(spec types.Spec) bool {
	return slices.ContainsFunc(spec.Users, s.opts.IsStaff)
}

// Arms a timer that starts the sweep at `when`. A time already past fires right away.
func (s *Scheduler) ScheduleSweep(ctx context.Context, kind, proj string, when time.Time) error {
	_, span := tracer.Start(ctx, "Scheduler.ScheduleSweep", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("when", when.Format(time.RFC3339)),
	))
	defer span.End()

	now := s.opts.Now()
	if when.Sub(now) > s.opts.Horizon {
		err := fmt.Errorf("%w: %s is more than %s away", ErrTooFarInFuture, when.Format(time.RFC3339), s.opts.Horizon)
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected sweep")
		return err
	}

	entry := &timer{entry: types.ScheduledSweep{When: when, Kind: kind, Proj: proj}}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.t = time.AfterFunc(max(when.Sub(now), 0), func() {
		s.mu.Lock()
		delete(s.timers, entry)
		s.mu.Unlock()

		ctx := context.Background()
		if _, err := s.StartSweep(ctx, kind, proj, when); err != nil {
			logger.Logger.ErrorContext(ctx, "scheduled sweep failed", "kind", kind, "proj", proj, "when", when, "error", err)
		}
	})
	s.timers[entry] = struct{}{}

	logger.Logger.InfoContext(ctx, "scheduled sweep", "kind", kind, "proj", proj, "when", when)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "scheduled sweep")
	return nil
}

// Pending sweeps, earliest first
func (s *Scheduler) Scheduled() []types.ScheduledSweep {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ScheduledSweep, 0, len(s.timers))
	for t := range s.timers {
		out = append(out, t.entry)
	}
	slices.SortFunc(out, func(a, b types.ScheduledSweep) int {
		return cmp.Or(a.When.Compare(b.When), cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Proj, b.Proj))
	})
	return out
}

// Stops every pending sweep and catch-up timer
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.timers {
		t.t.Stop()
		delete(s.timers, t)
	}
	for t := range s.catchups {
		t.Stop()
		delete(s.catchups, t)
	}
}

// Students first, then by joined users
func (s *Scheduler) sortRepoRevs(revs []types.RepoRevision) {
	slices.SortStableFunc(revs, func(a, b types.RepoRevision) int {
		aStaff, bStaff := s.isStaff(a.Spec), s.isStaff(b.Spec)
		if aStaff != bStaff {
			if aStaff {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.Spec.UsersJoined(), b.Spec.UsersJoined())
	})
}

// Resolves every matching repository's revision as of `when` and grades the result
func (s *Scheduler) StartSweep(ctx context.Context, kind, proj string, when time.Time) ([]types.RepoRevision, error) {
	ctx, span := tracer.Start(ctx, "Scheduler.StartSweep", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("when", when.Format(time.RFC3339)),
	))
	defer span.End()

	record := &types.SweepRecord{
		When:     when,
		Started:  s.opts.Now(),
		Kind:     kind,
		Proj:     proj,
		RepoRevs: []types.RepoRevision{},
	}
	if err := s.results.SaveSweep(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save sweep placeholder")
		return nil, err
	}

	specs, err := s.repos.FindRepos(ctx, vcs.RepoQuery{Kind: kind, Proj: proj})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find repositories")
		return nil, err
	}
	rand.Shuffle(len(specs), func(i, j int) { specs[i], specs[j] = specs[j], specs[i] })

	revs := make([]types.RepoRevision, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			revs[i].Spec = spec
			rev, err := s.repos.RevisionAsOf(gctx, spec, when)
			switch {
			case errors.Is(err, vcs.ErrPrehistoric), errors.Is(err, vcs.ErrNoRevision):
				return nil
			case err != nil:
				return fmt.Errorf("resolving %s: %w", spec, err)
			}
			revs[i].Rev = &rev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve revisions")
		return nil, err
	}

	s.sortRepoRevs(revs)
	finished := s.opts.Now()
	record.RepoRevs = revs
	record.Finished = &finished
	if err := s.results.SaveSweep(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save sweep")
		return nil, err
	}
	logger.Logger.InfoContext(ctx, "resolved sweep", "kind", kind, "proj", proj, "when", when, "repos", len(revs))

	grades, err := s.gradeSweep(ctx, kind, proj, when, revs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to grade sweep")
		return nil, err
	}

	span.SetAttributes(attribute.Int("repos", len(grades)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "swept")
	return grades, nil
}

// Grades an existing sweep again against the current staff revision
func (s *Scheduler) RebuildSweep(ctx context.Context, kind, proj string, when time.Time) ([]types.RepoRevision, error) {
	ctx, span := tracer.Start(ctx, "Scheduler.RebuildSweep", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("when", when.Format(time.RFC3339)),
	))
	defer span.End()

	record, err := s.results.LoadSweep(ctx, kind, proj, when)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load sweep")
		return nil, err
	}

	grades, err := s.gradeSweep(ctx, kind, proj, when, record.RepoRevs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to grade sweep")
		return nil, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "rebuilt sweep")
	return grades, nil
}

// Builds every resolved revision and records the grades in sweep order. A failed build
// leaves its entry ungraded.
func (s *Scheduler) gradeSweep(ctx context.Context, kind, proj string, when time.Time, revs []types.RepoRevision) ([]types.RepoRevision, error) {
	staffRev, err := s.repos.StaffRevision(ctx)
	if err != nil {
		return nil, err
	}

	promises := make([]*Promise, len(revs))
	for i, rr := range revs {
		if rr.Rev != nil {
			promises[i] = s.Build(ctx, rr.Spec.At(*rr.Rev), staffRev)
		}
	}

	grades := make([]types.RepoRevision, len(revs))
	for i, rr := range revs {
		grades[i] = types.RepoRevision{Spec: rr.Spec, Rev: rr.Rev}
		if promises[i] == nil {
			continue
		}
		record, err := promises[i].Wait(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			logger.Logger.WarnContext(ctx, "sweep build failed", "spec", rr.Spec.At(*rr.Rev).String(), "error", err)
			continue
		}
		grades[i].Grade = record.Grade
	}

	if err := s.results.SaveSweepGrades(ctx, kind, proj, when, grades); err != nil {
		return nil, err
	}
	logger.Logger.InfoContext(ctx, "graded sweep", "kind", kind, "proj", proj, "when", when, "staffRev", staffRev)
	return grades, nil
}

// Copies a sweep's grades to a named milestone
func (s *Scheduler) SnapshotMilestone(ctx context.Context, kind, proj string, when time.Time, name string) error {
	ctx, span := tracer.Start(ctx, "Scheduler.SnapshotMilestone", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("milestone", name),
	))
	defer span.End()

	grades, err := s.results.LoadSweepGrades(ctx, kind, proj, when)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load sweep grades")
		return err
	}
	if err := s.results.SaveMilestone(ctx, kind, proj, name, grades); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save milestone")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "saved milestone")
	return nil
}
