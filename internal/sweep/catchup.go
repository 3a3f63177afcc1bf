package sweep

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/vcs"
)

// Offsets spreading `n` starts evenly across `window`
func spread(n int, window time.Duration) []time.Duration {
	offsets := make([]time.Duration, n)
	if n == 0 {
		return offsets
	}
	step := window / time.Duration(n)
	for i := range offsets {
		offsets[i] = time.Duration(i) * step
	}
	return offsets
}

// Builds every repository's current revision, one at a time across `window` in shuffled
// order. Returns how many builds were queued.
func (s *Scheduler) ScheduleCatchups(ctx context.Context, kind, proj string, window time.Duration) (int, error) {
	ctx, span := tracer.Start(ctx, "Scheduler.ScheduleCatchups", trace.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("proj", proj),
		attribute.String("window", window.String()),
	))
	defer span.End()

	staffRev, err := s.repos.StaffRevision(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get staff revision")
		return 0, err
	}

	specs, err := s.repos.FindRepos(ctx, vcs.RepoQuery{Kind: kind, Proj: proj})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find repositories")
		return 0, err
	}
	rand.Shuffle(len(specs), func(i, j int) { specs[i], specs[j] = specs[j], specs[i] })

	offsets := spread(len(specs), window)
	buildCtx := context.WithoutCancel(ctx)
	s.mu.Lock()
	for i, spec := range specs {
		var t *time.Timer
		t = time.AfterFunc(offsets[i], func() {
			s.mu.Lock()
			delete(s.catchups, t)
			s.mu.Unlock()
			s.catchup(buildCtx, spec, staffRev)
		})
		s.catchups[t] = struct{}{}
	}
	s.mu.Unlock()

	logger.Logger.InfoContext(ctx, "scheduled catch-up builds", "kind", kind, "proj", proj,
		"repos", len(specs), "window", window, "pending", s.PendingCatchups())
	span.SetAttributes(attribute.Int("repos", len(specs)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "scheduled catch-ups")
	return len(specs), nil
}

// Catch-up builds whose timers have not fired yet
func (s *Scheduler) PendingCatchups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.catchups)
}

func (s *Scheduler) catchup(ctx context.Context, spec types.Spec, staffRev string) {
	rev, err := s.repos.Revision(ctx, spec, s.repos.Branch())
	if errors.Is(err, vcs.ErrNoRevision) {
		return
	}
	if err != nil {
		logger.Logger.WarnContext(ctx, "catch-up revision lookup failed", "spec", spec.String(), "error", err)
		return
	}
	if _, err := s.Build(ctx, spec.At(rev), staffRev).Wait(ctx); err != nil {
		logger.Logger.WarnContext(ctx, "catch-up build failed", "spec", spec.At(rev).String(), "error", err)
	}
}
