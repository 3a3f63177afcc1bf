package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/store"
	"github.com/maxg/didit-sub000/internal/types"
)

var ErrBuildFailed = errors.New("build failed")

// Build of `spec` against staff revision `staffRev`. Resolves at once to the stored record if
// an error-free one exists for that staff revision, joins a build of the same id already in
// flight, and otherwise starts a new build.
func (s *Scheduler) Build(ctx context.Context, spec types.Spec, staffRev string) *Promise {
	id := types.NewBuildID(spec)
	ctx, span := tracer.Start(ctx, "Scheduler.Build", trace.WithAttributes(
		attribute.String("build.id", string(id)),
		attribute.String("staffRev", staffRev),
	))
	defer span.End()

	record, err := s.results.LoadBuild(ctx, spec)
	switch {
	case err == nil && !record.Failed() && record.StaffRevision == staffRev:
		span.AddEvent("cached")
		return resolved(record, nil)
	case err != nil && !errors.Is(err, store.ErrNotFound):
		logger.ForBuild(string(id)).WarnContext(ctx, "unreadable build record, rebuilding", "error", err)
	}

	s.mu.Lock()
	if p, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		span.AddEvent("joined")
		return p
	}
	p := pending()
	s.inflight[id] = p
	s.mu.Unlock()

	monitor, err := s.builds.StartBuild(ctx, spec)
	if err != nil {
		s.settle(id, p, nil, fmt.Errorf("starting build of %s: %w", spec, err))
		return p
	}

	go func() {
		defer monitor.Cancel()
		record, err := s.await(context.WithoutCancel(ctx), monitor, spec)
		s.settle(id, p, record, err)
	}()
	return p
}

// Drops the in-flight entry before resolving, so a later Build sees the stored record
func (s *Scheduler) settle(id types.BuildID, p *Promise, record *types.BuildRecord, err error) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
	p.resolve(record, err)
}

// Waits for the build's terminal event, then falls back to polling the stored record
func (s *Scheduler) await(ctx context.Context, monitor *coordinator.Monitor, spec types.Spec) (*types.BuildRecord, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.BuildTimeout)
	ev, err := monitor.Wait(waitCtx)
	cancel()

	if err == nil {
		if ev.Type == types.BuildEventDone && ev.Record != nil {
			return ev.Record, nil
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrBuildFailed, spec, ev.Reason)
	}

	logger.ForBuild(string(types.NewBuildID(spec))).InfoContext(ctx,
		"no build event in time, polling for the record", "timeout", s.opts.BuildTimeout)

	var record *types.BuildRecord
	backoff := retry.WithMaxDuration(s.opts.RecordWait, retry.NewConstant(s.opts.RecordPoll))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		record, err = s.results.LoadBuild(ctx, spec)
		if errors.Is(err, store.ErrNotFound) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBuildFailed, spec, err)
	}
	return record, nil
}
