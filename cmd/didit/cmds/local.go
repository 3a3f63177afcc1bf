package cmds

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/workerpool"
)

// Runs builds inside this process instead of through the workflow service, for one-shot
// commands that wait for their builds
type localBuilds struct {
	registry *coordinator.Registry
	builder  workerpool.Builder
	slots    *semaphore.Weighted
}

func newLocalBuilds(builder workerpool.Builder, concurrency int64) *localBuilds {
	return &localBuilds{
		registry: coordinator.NewRegistry(),
		builder:  builder,
		slots:    semaphore.NewWeighted(max(concurrency, 1)),
	}
}

func (l *localBuilds) StartBuild(ctx context.Context, spec types.Spec) (*coordinator.Monitor, error) {
	id := types.NewBuildID(spec)
	monitor := l.registry.Subscribe(id)

	go func() {
		ctx := context.WithoutCancel(ctx)
		if err := l.slots.Acquire(ctx, 1); err != nil {
			l.registry.Publish(types.BuildEvent{Type: types.BuildEventFailed, BuildID: id, Reason: err.Error()})
			return
		}
		defer l.slots.Release(1)

		l.registry.Publish(types.BuildEvent{Type: types.BuildEventStart, BuildID: id, Spec: &spec})
		record := l.builder.Run(ctx, spec, func(p types.Progress) {
			l.registry.Publish(types.BuildEvent{Type: types.BuildEventProgress, BuildID: id, Progress: &p})
		})
		if record.Failed() {
			logger.ForBuild(string(id)).WarnContext(ctx, "local build failed", "error", record.Error)
		}
		l.registry.Publish(types.BuildEvent{Type: types.BuildEventDone, BuildID: id, Record: record})
	}()
	return monitor, nil
}
