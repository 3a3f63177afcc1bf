package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/workflow"
)

var (
	tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/coordinator")
	meter  = otel.Meter("github.com/maxg/didit-sub000/internal/coordinator")
)

type Options struct {
	Identity string
	// Wait after a failed poll before polling again
	ErrorBackoff time.Duration
	// Refresh period and rolling window of Stats
	StatsInterval time.Duration
	StatsWindow   time.Duration
	// Time a build request handler gets before its message is released
	IntakeTimeout time.Duration
}

// Decides build workflows and republishes their events to local listeners
type Coordinator struct {
	service  workflow.Service
	registry *Registry
	stats    *Stats
	finished metric.Int64Counter
	opts     Options

	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	statsMu   sync.RWMutex
}

func New(service workflow.Service, opts Options) (*Coordinator, error) {
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 10 * time.Second
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = time.Minute
	}
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = 24 * time.Hour
	}
	if opts.IntakeTimeout <= 0 {
		opts.IntakeTimeout = time.Minute
	}

	finished, err := meter.Int64Counter("didit.builds.finished",
		metric.WithDescription("Build workflows decided to a terminal state"))
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		service:  service,
		registry: NewRegistry(),
		finished: finished,
		opts:     opts,
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Registers the build workflow and activity types. Already registered is not an error.
func (c *Coordinator) Register(ctx context.Context) error {
	if err := c.service.RegisterWorkflowType(ctx, BuildWorkflow); err != nil {
		return fmt.Errorf("registering workflow type: %w", err)
	}
	if err := c.service.RegisterActivityType(ctx, BuildActivity); err != nil {
		return fmt.Errorf("registering activity type: %w", err)
	}
	return nil
}

// Listens for events of one build
func (c *Coordinator) Subscribe(id types.BuildID) *Monitor {
	return c.registry.Subscribe(id)
}

// Starts the build of `spec`, or observes it if one is already running. The caller must
// Cancel the returned monitor once done with it.
func (c *Coordinator) StartBuild(ctx context.Context, spec types.Spec) (*Monitor, error) {
	id := types.NewBuildID(spec)
	ctx, span := tracer.Start(ctx, "Coordinator.StartBuild", trace.WithAttributes(
		attribute.String("build.id", string(id)),
	))
	defer span.End()

	input, err := json.Marshal(spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal spec")
		return nil, err
	}

	// subscribe first so the start event cannot be missed
	monitor := c.registry.Subscribe(id)
	_, err = c.service.StartWorkflow(ctx, workflow.StartRequest{
		ID:       string(id),
		Type:     BuildWorkflow,
		TaskList: DecisionTaskList,
		Input:    string(input),
	})
	switch {
	case errors.Is(err, workflow.ErrAlreadyStarted):
		logger.ForBuild(string(id)).DebugContext(ctx, "build already running, observing it")
	case err != nil:
		monitor.Cancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to start workflow")
		return nil, err
	default:
		logger.ForBuild(string(id)).InfoContext(ctx, "started build", "spec", spec.String())
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "started build")
	return monitor, nil
}

// Handles one decision task. Returns false when the poll came back empty.
func (c *Coordinator) decideOnce(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.decideOnce")
	defer span.End()

	task, err := c.service.PollForDecisionTask(ctx, DecisionTaskList, c.opts.Identity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to poll")
		return false, err
	}
	if task == nil {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "no decision task")
		return false, nil
	}

	span.SetAttributes(attribute.String("build.id", task.WorkflowID))
	decisions, event := Decide(task.Events)
	if err := c.service.RespondDecisionTaskCompleted(ctx, task.Token, decisions); err != nil {
		logger.ForBuild(task.WorkflowID).ErrorContext(ctx, "failed to respond to decision task", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to respond")
		return true, err
	}

	if event != nil {
		event.BuildID = types.BuildID(task.WorkflowID)
		logger.ForBuild(task.WorkflowID).DebugContext(ctx, "build event", "type", event.Type, "reason", event.Reason)
		if event.Terminal() {
			c.finished.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(event.Type))))
		}
		c.registry.Publish(*event)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "decided")
	return true, nil
}

// Polls for and answers decision tasks until Close is called or ctx ends. A poll in flight
// when Close is called is allowed to finish.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	logger.Logger.InfoContext(ctx, "coordinator polling", "taskList", DecisionTaskList)

	for {
		select {
		case <-c.closing:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := c.decideOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Logger.WarnContext(ctx, "decision poll failed, backing off", "error", err, "backoff", c.opts.ErrorBackoff)
			select {
			case <-c.closing:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.ErrorBackoff):
			}
		}
	}
}

// Asks Run to stop after its current poll
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// Closed once Run has returned
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
