package workerpool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/workflow"
)

var (
	tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/workerpool")
	meter  = otel.Meter("github.com/maxg/didit-sub000/internal/workerpool")
)

// Runs one build to completion. Failures are reported in the record.
type Builder interface {
	Run(ctx context.Context, spec types.Spec, onProgress func(types.Progress)) *types.BuildRecord
}

type Options struct {
	// Builds run at once, default 2
	Concurrency int64
	// Reported to the workflow service, Identity() when empty
	Identity string
	// Wait after a failed poll
	ErrorBackoff time.Duration
}

// Polls for build tasks and runs them with bounded concurrency
type Pool struct {
	service workflow.Service
	builder Builder
	slots   *semaphore.Weighted
	tasks   runner
	opts    Options

	completed metric.Int64Counter
	failed    metric.Int64Counter
	busy      metric.Int64UpDownCounter

	stopping chan struct{}
	stopOnce sync.Once
}

// `hostname:machine-id` of this process' host
func Identity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	id, err := machineid.ProtectedID("didit")
	if err != nil {
		return host
	}
	return host + ":" + id[:12]
}

func New(service workflow.Service, builder Builder, opts Options) (*Pool, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.Identity == "" {
		opts.Identity = Identity()
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 10 * time.Second
	}

	completed, err := meter.Int64Counter("didit.builds.completed",
		metric.WithDescription("Builds that produced a record without error"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("didit.builds.failed",
		metric.WithDescription("Builds whose record carries an error"))
	if err != nil {
		return nil, err
	}
	busy, err := meter.Int64UpDownCounter("didit.workers.busy",
		metric.WithDescription("Builds currently running"))
	if err != nil {
		return nil, err
	}

	return &Pool{
		service:   service,
		builder:   builder,
		slots:     semaphore.NewWeighted(opts.Concurrency),
		opts:      opts,
		completed: completed,
		failed:    failed,
		busy:      busy,
		stopping:  make(chan struct{}),
	}, nil
}

func (p *Pool) stopped() bool {
	select {
	case <-p.stopping:
		return true
	default:
		return false
	}
}

// Polls until Shutdown is called or ctx ends. A slot is taken before every poll, so a full
// pool stops polling until a build finishes.
func (p *Pool) Run(ctx context.Context) error {
	logger.Logger.InfoContext(ctx, "worker polling",
		"identity", p.opts.Identity, "concurrency", p.opts.Concurrency)

	for !p.stopped() {
		if err := p.slots.Acquire(ctx, 1); err != nil {
			return err
		}
		if p.stopped() {
			p.slots.Release(1)
			break
		}

		task, err := p.service.PollForActivityTask(ctx, coordinator.BuildTaskList, p.opts.Identity)
		if err != nil {
			p.slots.Release(1)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Logger.WarnContext(ctx, "build poll failed, backing off", "error", err, "backoff", p.opts.ErrorBackoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.stopping:
			case <-time.After(p.opts.ErrorBackoff):
			}
			continue
		}
		if task == nil {
			p.slots.Release(1)
			continue
		}

		p.tasks.Go(ctx, func(ctx context.Context) {
			defer p.slots.Release(1)
			p.handle(ctx, task)
		})
	}
	return nil
}

// Stops polling and waits for running builds until ctx ends
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopping) })
	return p.tasks.Wait(ctx)
}

func (p *Pool) signal(ctx context.Context, workflowID string, progress types.Progress) {
	input, err := json.Marshal(progress)
	if err == nil {
		err = p.service.SignalWorkflow(ctx, workflowID, coordinator.ProgressSignal, string(input))
	}
	if err != nil {
		logger.ForBuild(workflowID).WarnContext(ctx, "failed to signal progress", "error", err)
	}
}

func (p *Pool) handle(ctx context.Context, task *workflow.ActivityTask) {
	ctx, span := tracer.Start(ctx, "Pool.handle", trace.WithAttributes(
		attribute.String("build.id", task.WorkflowID),
	))
	defer span.End()
	log := logger.ForBuild(task.WorkflowID)

	var spec types.Spec
	if err := json.Unmarshal([]byte(task.Input), &spec); err != nil {
		log.ErrorContext(ctx, "malformed build input", "input", task.Input, "error", err)
		if err := p.service.RespondActivityTaskFailed(ctx, task.Token, "malformed build input", err.Error()); err != nil {
			log.ErrorContext(ctx, "failed to report malformed input", "error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed build input")
		return
	}

	p.busy.Add(ctx, 1)
	defer p.busy.Add(ctx, -1)

	log.InfoContext(ctx, "building", "spec", spec.String())
	record := p.builder.Run(ctx, spec, func(progress types.Progress) {
		p.signal(ctx, task.WorkflowID, progress)
	})

	if record.Failed() {
		p.failed.Add(ctx, 1)
	} else {
		p.completed.Add(ctx, 1)
	}

	result, err := json.Marshal(record)
	if err != nil {
		err = fmt.Errorf("marshaling build record: %w", err)
		log.ErrorContext(ctx, "failed to serialize result", "error", err)
		_ = p.service.RespondActivityTaskFailed(ctx, task.Token, "unserializable result", err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize result")
		return
	}
	if err := p.service.RespondActivityTaskCompleted(ctx, task.Token, string(result)); err != nil {
		log.ErrorContext(ctx, "failed to report build result", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to report result")
		return
	}

	log.InfoContext(ctx, "built", "spec", spec.String(), "error", record.Error)
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "built")
}
