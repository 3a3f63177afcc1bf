package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maxg/didit-sub000/internal/logger"
)

var tracer = otel.Tracer("github.com/maxg/didit-sub000/internal/workflow")

// A popped task no longer matches its execution, e.g. it was closed meanwhile
var errStale = errors.New("stale task")

// Storage for executions, registrations and task lists
type backend interface {
	register(ctx context.Context, kind string, t Type) error
	registered(ctx context.Context, kind string, t Type) (bool, error)
	// Saves `e` unless an open execution with its id exists
	create(ctx context.Context, e *execution) error
	// Atomically applies `fn` to the execution with `id`
	update(ctx context.Context, id string, fn func(*execution) error) error
	executions(ctx context.Context) ([]*execution, error)
	remove(ctx context.Context, id string) error
	push(ctx context.Context, list, item string) error
	// Blocks up to `timeout`; false when nothing arrived
	pop(ctx context.Context, list string, timeout time.Duration) (string, bool, error)
}

type Options struct {
	// Namespaces shared storage so several courses can share one server
	Domain           string
	PollTimeout      time.Duration
	ActivityTimeout  time.Duration
	ExecutionTimeout time.Duration
	// Closed executions older than this are forgotten
	Retention time.Duration
	Now       func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PollTimeout <= 0 {
		o.PollTimeout = 60 * time.Second
	}
	if o.ActivityTimeout <= 0 {
		o.ActivityTimeout = 30 * time.Minute
	}
	if o.ExecutionTimeout <= 0 {
		o.ExecutionTimeout = 2 * time.Hour
	}
	if o.Retention <= 0 {
		o.Retention = 7 * 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Workflow state machine shared by every backend
type service struct {
	backend backend
	opts    Options
}

var _ Service = (*service)(nil)

const (
	kindWorkflow = "workflow"
	kindActivity = "activity"
)

func decisionList(taskList string) string { return "decisions:" + taskList }
func activityList(taskList string) string { return "activities:" + taskList }

func newToken(parts ...string) string {
	return strings.Join(append(parts, uuid.NewString()), "|")
}

func splitToken(token string) ([]string, error) {
	parts := strings.Split(token, "|")
	if len(parts) < 2 {
		return nil, ErrUnknownTask
	}
	return parts, nil
}

func (s *service) now() time.Time {
	return s.opts.Now().UTC()
}

func (s *service) RegisterWorkflowType(ctx context.Context, t Type) error {
	return s.backend.register(ctx, kindWorkflow, t)
}

func (s *service) RegisterActivityType(ctx context.Context, t Type) error {
	return s.backend.register(ctx, kindActivity, t)
}

func (s *service) StartWorkflow(ctx context.Context, req StartRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "Service.StartWorkflow", trace.WithAttributes(
		attribute.String("workflow.id", req.ID),
		attribute.String("workflow.type", req.Type.Name),
	))
	defer span.End()

	ok, err := s.backend.registered(ctx, kindWorkflow, req.Type)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check registration")
		return "", err
	}
	if !ok {
		err := fmt.Errorf("%w: workflow %s/%s", ErrUnknownType, req.Type.Name, req.Type.Version)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unregistered workflow type")
		return "", err
	}

	now := s.now()
	e := &execution{
		ID:         req.ID,
		RunID:      uuid.NewString(),
		Type:       req.Type,
		TaskList:   req.TaskList,
		Started:    now,
		Deadline:   now.Add(s.opts.ExecutionTimeout),
		Activities: map[string]*activity{},
	}
	e.append(now, HistoryEvent{Type: WorkflowExecutionStarted, Input: req.Input})
	e.wake(now)

	if err := s.backend.create(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create execution")
		return "", err
	}
	if err := s.backend.push(ctx, decisionList(e.TaskList), e.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to schedule decision")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "started workflow")
	return e.RunID, nil
}

// Applies `fn` and enqueues a decision task if it asks for one
func (s *service) mutate(ctx context.Context, id string, fn func(e *execution, now time.Time) (bool, error)) error {
	var e *execution
	var wake bool
	err := s.backend.update(ctx, id, func(ex *execution) error {
		var err error
		e = ex
		wake, err = fn(ex, s.now())
		return err
	})
	if err != nil {
		return err
	}
	if wake {
		return s.backend.push(ctx, decisionList(e.TaskList), e.ID)
	}
	return nil
}

func (s *service) PollForDecisionTask(ctx context.Context, taskList, identity string) (*DecisionTask, error) {
	ctx, span := tracer.Start(ctx, "Service.PollForDecisionTask", trace.WithAttributes(
		attribute.String("task_list", taskList),
		attribute.String("identity", identity),
	))
	defer span.End()

	deadline := s.now().Add(s.opts.PollTimeout)
	for {
		if err := s.expire(ctx); err != nil {
			logger.Logger.WarnContext(ctx, "failed to expire workflows", "error", err)
		}

		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "poll timed out")
			return nil, nil
		}

		id, ok, err := s.backend.pop(ctx, decisionList(taskList), min(remaining, time.Second))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to poll")
			return nil, err
		}
		if !ok {
			continue
		}

		var task *DecisionTask
		err = s.backend.update(ctx, id, func(e *execution) error {
			if e.Decision != decisionScheduled {
				return errStale
			}
			now := s.now()
			e.Decision = decisionStarted
			e.Token = newToken(e.ID, e.RunID)
			e.append(now, HistoryEvent{Type: DecisionTaskStarted, Identity: identity})
			task = &DecisionTask{
				Token:      e.Token,
				WorkflowID: e.ID,
				RunID:      e.RunID,
				Type:       e.Type,
				Events:     e.undelivered(),
			}
			e.Delivered = len(e.History)
			return nil
		})
		if errors.Is(err, errStale) || errors.Is(err, ErrUnknownExecution) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to start decision task")
			return nil, err
		}

		span.SetAttributes(attribute.String("workflow.id", task.WorkflowID), attribute.Int("events", len(task.Events)))
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "got decision task")
		return task, nil
	}
}

func (s *service) RespondDecisionTaskCompleted(ctx context.Context, token string, decisions []Decision) error {
	ctx, span := tracer.Start(ctx, "Service.RespondDecisionTaskCompleted", trace.WithAttributes(
		attribute.Int("decisions", len(decisions)),
	))
	defer span.End()

	parts, err := splitToken(token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed token")
		return err
	}

	var scheduled []*activity
	err = s.mutate(ctx, parts[0], func(e *execution, now time.Time) (bool, error) {
		if e.Decision != decisionStarted || e.Token != token {
			return false, ErrUnknownTask
		}
		e.Decision = decisionIdle
		e.Token = ""
		e.append(now, HistoryEvent{Type: DecisionTaskCompleted})

		for _, d := range decisions {
			if !e.open() {
				break
			}
			switch d.Type {
			case ScheduleActivityTask:
				a, err := s.schedule(ctx, e, now, d)
				if err != nil {
					return false, err
				}
				if a != nil {
					scheduled = append(scheduled, a)
				}
			case CompleteWorkflowExecution:
				e.close(now, StatusCompleted, HistoryEvent{Type: WorkflowExecutionCompleted, Input: d.Input})
			case FailWorkflowExecution:
				e.close(now, StatusFailed, HistoryEvent{Type: WorkflowExecutionFailed, Reason: d.Reason, Details: d.Details})
			case CancelWorkflowExecution:
				e.close(now, StatusCanceled, HistoryEvent{Type: WorkflowExecutionCanceled, Details: d.Details})
			default:
				return false, fmt.Errorf("unknown decision %q", d.Type)
			}
		}

		stale := e.Stale
		e.Stale = false
		if e.open() && stale {
			return e.wake(now), nil
		}
		return false, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to complete decision task")
		return err
	}

	for _, a := range scheduled {
		if err := s.backend.push(ctx, activityList(a.TaskList), parts[0]+"|"+a.ID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to enqueue activity")
			return err
		}
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "completed decision task")
	return nil
}

// Records a scheduled activity, or ScheduleActivityTaskFailed when it cannot be scheduled
func (s *service) schedule(ctx context.Context, e *execution, now time.Time, d Decision) (*activity, error) {
	ok, err := s.backend.registered(ctx, kindActivity, d.ActivityType)
	if err != nil {
		return nil, err
	}

	var cause string
	switch {
	case !ok:
		cause = "ACTIVITY_TYPE_DOES_NOT_EXIST"
	case d.ActivityID == "":
		cause = "ACTIVITY_ID_REQUIRED"
	case e.Activities[d.ActivityID] != nil:
		cause = "ACTIVITY_ID_ALREADY_IN_USE"
	}
	if cause != "" {
		e.append(now, HistoryEvent{Type: ScheduleActivityTaskFailed, ActivityID: d.ActivityID, Reason: cause})
		e.Stale = true
		return nil, nil
	}

	a := &activity{
		ID:        d.ActivityID,
		Type:      d.ActivityType,
		Input:     d.Input,
		TaskList:  d.TaskList,
		Scheduled: now,
		Timeout:   d.Timeout,
	}
	if a.TaskList == "" {
		a.TaskList = e.TaskList
	}
	if a.Timeout <= 0 {
		a.Timeout = s.opts.ActivityTimeout
	}
	e.Activities[a.ID] = a
	e.append(now, HistoryEvent{Type: ActivityTaskScheduled, ActivityID: a.ID, Input: a.Input})
	return a, nil
}

func (s *service) PollForActivityTask(ctx context.Context, taskList, identity string) (*ActivityTask, error) {
	ctx, span := tracer.Start(ctx, "Service.PollForActivityTask", trace.WithAttributes(
		attribute.String("task_list", taskList),
		attribute.String("identity", identity),
	))
	defer span.End()

	deadline := s.now().Add(s.opts.PollTimeout)
	for {
		if err := s.expire(ctx); err != nil {
			logger.Logger.WarnContext(ctx, "failed to expire workflows", "error", err)
		}

		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "poll timed out")
			return nil, nil
		}

		item, ok, err := s.backend.pop(ctx, activityList(taskList), min(remaining, time.Second))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to poll")
			return nil, err
		}
		if !ok {
			continue
		}

		workflowID, activityID, found := strings.Cut(item, "|")
		if !found {
			continue
		}

		var task *ActivityTask
		err = s.backend.update(ctx, workflowID, func(e *execution) error {
			a := e.Activities[activityID]
			if !e.open() || a == nil || a.Token != "" {
				return errStale
			}
			now := s.now()
			a.Token = newToken(e.ID, a.ID)
			a.Deadline = now.Add(a.Timeout)
			e.append(now, HistoryEvent{Type: ActivityTaskStarted, ActivityID: a.ID, Identity: identity})
			task = &ActivityTask{
				Token:        a.Token,
				WorkflowID:   e.ID,
				RunID:        e.RunID,
				ActivityID:   a.ID,
				ActivityType: a.Type,
				Input:        a.Input,
			}
			return nil
		})
		if errors.Is(err, errStale) || errors.Is(err, ErrUnknownExecution) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to start activity task")
			return nil, err
		}

		span.SetAttributes(attribute.String("workflow.id", task.WorkflowID))
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "got activity task")
		return task, nil
	}
}

func (s *service) finishActivity(ctx context.Context, token string, ev HistoryEvent) error {
	parts, err := splitToken(token)
	if err != nil || len(parts) < 3 {
		return ErrUnknownTask
	}

	return s.mutate(ctx, parts[0], func(e *execution, now time.Time) (bool, error) {
		a := e.Activities[parts[1]]
		if !e.open() || a == nil || a.Token != token {
			return false, ErrUnknownTask
		}
		delete(e.Activities, a.ID)
		ev.ActivityID = a.ID
		e.append(now, ev)
		return e.wake(now), nil
	})
}

func (s *service) RespondActivityTaskCompleted(ctx context.Context, token, result string) error {
	ctx, span := tracer.Start(ctx, "Service.RespondActivityTaskCompleted")
	defer span.End()

	if err := s.finishActivity(ctx, token, HistoryEvent{Type: ActivityTaskCompleted, Input: result}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to complete activity")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "completed activity")
	return nil
}

func (s *service) RespondActivityTaskFailed(ctx context.Context, token, reason, details string) error {
	ctx, span := tracer.Start(ctx, "Service.RespondActivityTaskFailed")
	defer span.End()

	if err := s.finishActivity(ctx, token, HistoryEvent{Type: ActivityTaskFailed, Reason: reason, Details: details}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fail activity")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "failed activity")
	return nil
}

func (s *service) SignalWorkflow(ctx context.Context, workflowID, signalName, input string) error {
	ctx, span := tracer.Start(ctx, "Service.SignalWorkflow", trace.WithAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("signal", signalName),
	))
	defer span.End()

	err := s.mutate(ctx, workflowID, func(e *execution, now time.Time) (bool, error) {
		if !e.open() {
			return false, fmt.Errorf("%w: %s is closed", ErrUnknownExecution, workflowID)
		}
		e.append(now, HistoryEvent{Type: WorkflowExecutionSignaled, SignalName: signalName, Input: input})
		return e.wake(now), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to signal")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "signaled")
	return nil
}

func (s *service) RequestCancelWorkflow(ctx context.Context, workflowID string) error {
	ctx, span := tracer.Start(ctx, "Service.RequestCancelWorkflow", trace.WithAttributes(
		attribute.String("workflow.id", workflowID),
	))
	defer span.End()

	err := s.mutate(ctx, workflowID, func(e *execution, now time.Time) (bool, error) {
		if !e.open() {
			return false, fmt.Errorf("%w: %s is closed", ErrUnknownExecution, workflowID)
		}
		e.append(now, HistoryEvent{Type: WorkflowExecutionCancelRequested})
		return e.wake(now), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to request cancel")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "requested cancel")
	return nil
}

// Enforces execution and activity timeouts, and forgets executions past retention
func (s *service) expire(ctx context.Context) error {
	all, err := s.backend.executions(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	var errs []error
	for _, e := range all {
		if !e.open() {
			if now.Sub(e.Closed) > s.opts.Retention {
				errs = append(errs, s.backend.remove(ctx, e.ID))
			}
			continue
		}

		overdue := now.After(e.Deadline)
		for _, a := range e.Activities {
			overdue = overdue || (a.Token != "" && now.After(a.Deadline))
		}
		if !overdue {
			continue
		}

		err := s.mutate(ctx, e.ID, func(e *execution, now time.Time) (bool, error) {
			if !e.open() {
				return false, nil
			}
			if now.After(e.Deadline) {
				e.close(now, StatusTimedOut, HistoryEvent{Type: WorkflowExecutionTimedOut})
				// one last decision task so the decider sees the timeout
				e.Decision = decisionIdle
				return e.wake(now), nil
			}

			wake := false
			for id, a := range e.Activities {
				if a.Token != "" && now.After(a.Deadline) {
					delete(e.Activities, id)
					e.append(now, HistoryEvent{Type: ActivityTaskTimedOut, ActivityID: id, Reason: "START_TO_CLOSE"})
					wake = e.wake(now) || wake
				}
			}
			return wake, nil
		})
		if err != nil && !errors.Is(err, ErrUnknownExecution) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func inWindow(t time.Time, f Filter, now time.Time) bool {
	until := f.Until
	if until.IsZero() {
		until = now
	}
	return !t.Before(f.Since) && t.Before(until)
}

func (s *service) CountOpenWorkflows(ctx context.Context, filter Filter) (int, error) {
	all, err := s.backend.executions(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().Add(time.Nanosecond)
	count := 0
	for _, e := range all {
		if e.open() && inWindow(e.Started, filter, now) {
			count++
		}
	}
	return count, nil
}

func (s *service) CountClosedWorkflows(ctx context.Context, filter Filter) (int, error) {
	all, err := s.backend.executions(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().Add(time.Nanosecond)
	count := 0
	for _, e := range all {
		if e.open() || !inWindow(e.Closed, filter, now) {
			continue
		}
		if len(filter.Statuses) == 0 || slices.Contains(filter.Statuses, e.Status) {
			count++
		}
	}
	return count, nil
}
