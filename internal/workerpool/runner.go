package workerpool

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/codes"
)

var errShutdownTimeout = errors.New("builds still running at shutdown deadline")

// Tracks in-flight builds so shutdown can wait for them
type runner struct {
	running sync.WaitGroup
}

// Runs `build` on its own goroutine. The build keeps running if ctx is canceled; only
// Shutdown's deadline bounds it.
func (r *runner) Go(ctx context.Context, build func(context.Context)) {
	r.running.Add(1)
	go func() {
		defer r.running.Done()
		build(context.WithoutCancel(ctx))
	}()
}

// Races all builds finishing against ctx
func (r *runner) Wait(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "runner.Wait")
	defer span.End()

	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		span.AddEvent("hit_timeout")
		span.RecordError(errShutdownTimeout)
		span.SetStatus(codes.Error, "builds did not finish in time")
		return errShutdownTimeout
	case <-done:
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "builds finished")
		return nil
	}
}
