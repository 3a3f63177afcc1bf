package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxg/didit-sub000/internal/workflow"
)

var (
	buildType = workflow.Type{Name: "build", Version: "1"}
	runType   = workflow.Type{Name: "run", Version: "1"}
)

type clock struct {
	t  time.Time
	mu sync.Mutex
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newService(t *testing.T, c *clock) workflow.Service {
	t.Helper()
	opts := workflow.Options{
		Domain:           "test",
		PollTimeout:      200 * time.Millisecond,
		ActivityTimeout:  time.Minute,
		ExecutionTimeout: time.Hour,
	}
	if c != nil {
		opts.Now = c.Now
	}
	svc := workflow.NewMemory(opts)
	require.NoError(t, svc.RegisterWorkflowType(context.Background(), buildType))
	require.NoError(t, svc.RegisterActivityType(context.Background(), runType))
	return svc
}

func start(t *testing.T, svc workflow.Service, id string) {
	t.Helper()
	_, err := svc.StartWorkflow(context.Background(), workflow.StartRequest{
		ID: id, Type: buildType, TaskList: "decide", Input: `{"rev":"aaaa123"}`,
	})
	require.NoError(t, err)
}

func decide(t *testing.T, svc workflow.Service) *workflow.DecisionTask {
	t.Helper()
	task, err := svc.PollForDecisionTask(context.Background(), "decide", "coordinator")
	require.NoError(t, err)
	require.NotNil(t, task, "expected a decision task")
	return task
}

func eventTypes(events []workflow.HistoryEvent) []workflow.EventType {
	out := make([]workflow.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func scheduleRun(id string) workflow.Decision {
	return workflow.Decision{
		Type:         workflow.ScheduleActivityTask,
		ActivityType: runType,
		ActivityID:   id,
		TaskList:     "work",
		Input:        "payload",
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownType", func(t *testing.T) {
		svc := newService(t, nil)
		_, err := svc.StartWorkflow(ctx, workflow.StartRequest{ID: "x", Type: workflow.Type{Name: "nope", Version: "1"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, workflow.ErrUnknownType))
	})

	t.Run("AlreadyStarted", func(t *testing.T) {
		svc := newService(t, nil)
		start(t, svc, "w1")
		_, err := svc.StartWorkflow(ctx, workflow.StartRequest{ID: "w1", Type: buildType, TaskList: "decide"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, workflow.ErrAlreadyStarted))
	})

	t.Run("RestartAfterClose", func(t *testing.T) {
		svc := newService(t, nil)
		start(t, svc, "w1")
		task := decide(t, svc)
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{{Type: workflow.CompleteWorkflowExecution}}))

		_, err := svc.StartWorkflow(ctx, workflow.StartRequest{ID: "w1", Type: buildType, TaskList: "decide"})
		require.NoError(t, err)
	})

	t.Run("PollTimesOut", func(t *testing.T) {
		svc := newService(t, nil)
		task, err := svc.PollForDecisionTask(ctx, "decide", "coordinator")
		require.NoError(t, err)
		assert.Nil(t, task)

		activity, err := svc.PollForActivityTask(ctx, "work", "worker")
		require.NoError(t, err)
		assert.Nil(t, activity)
	})

	t.Run("ActivityRoundTrip", func(t *testing.T) {
		svc := newService(t, nil)
		start(t, svc, "w1")

		task := decide(t, svc)
		assert.Equal(t, "w1", task.WorkflowID)
		assert.Equal(t, buildType, task.Type)
		require.Equal(t, []workflow.EventType{workflow.WorkflowExecutionStarted}, eventTypes(task.Events))
		assert.Equal(t, `{"rev":"aaaa123"}`, task.Events[0].Input)
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{scheduleRun("a1")}))

		activity, err := svc.PollForActivityTask(ctx, "work", "worker-1")
		require.NoError(t, err)
		require.NotNil(t, activity)
		assert.Equal(t, "a1", activity.ActivityID)
		assert.Equal(t, runType, activity.ActivityType)
		assert.Equal(t, "payload", activity.Input)

		require.NoError(t, svc.SignalWorkflow(ctx, "w1", "progress", "Checked out aaaa123"))
		require.NoError(t, svc.RespondActivityTaskCompleted(ctx, activity.Token, "result"))

		task = decide(t, svc)
		assert.Equal(t, []workflow.EventType{
			workflow.ActivityTaskCompleted,
			workflow.WorkflowExecutionSignaled,
			workflow.ActivityTaskStarted,
			workflow.ActivityTaskScheduled,
		}, eventTypes(task.Events))
		assert.Equal(t, "result", task.Events[0].Input)
		assert.Equal(t, "progress", task.Events[1].SignalName)
		assert.Equal(t, "worker-1", task.Events[2].Identity)

		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{{Type: workflow.CompleteWorkflowExecution}}))

		closed, err := svc.CountClosedWorkflows(ctx, workflow.Filter{Statuses: []workflow.CloseStatus{workflow.StatusCompleted}})
		require.NoError(t, err)
		assert.Equal(t, 1, closed)
		open, err := svc.CountOpenWorkflows(ctx, workflow.Filter{})
		require.NoError(t, err)
		assert.Equal(t, 0, open)
	})

	t.Run("ActivityFailure", func(t *testing.T) {
		svc := newService(t, nil)
		start(t, svc, "w1")
		task := decide(t, svc)
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{scheduleRun("a1")}))

		activity, err := svc.PollForActivityTask(ctx, "work", "worker")
		require.NoError(t, err)
		require.NotNil(t, activity)
		require.NoError(t, svc.RespondActivityTaskFailed(ctx, activity.Token, "Error running compiler", "exit 1"))

		task = decide(t, svc)
		require.Equal(t, workflow.ActivityTaskFailed, task.Events[0].Type)
		assert.Equal(t, "Error running compiler", task.Events[0].Reason)
		assert.Equal(t, "exit 1", task.Events[0].Details)

		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{{Type: workflow.FailWorkflowExecution, Reason: "failed"}}))
		failed, err := svc.CountClosedWorkflows(ctx, workflow.Filter{Statuses: []workflow.CloseStatus{workflow.StatusFailed}})
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
	})

	t.Run("StaleTokens", func(t *testing.T) {
		svc := newService(t, nil)
		start(t, svc, "w1")
		task := decide(t, svc)
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{scheduleRun("a1")}))

		err := svc.RespondDecisionTaskCompleted(ctx, task.Token, nil)
		assert.True(t, errors.Is(err, workflow.ErrUnknownTask))

		activity, err := svc.PollForActivityTask(ctx, "work", "worker")
		require.NoError(t, err)
		require.NoError(t, svc.RespondActivityTaskCompleted(ctx, activity.Token, ""))
		err = svc.RespondActivityTaskCompleted(ctx, activity.Token, "")
		assert.True(t, errors.Is(err, workflow.ErrUnknownTask))

		err = svc.RespondActivityTaskCompleted(ctx, "garbage", "")
		assert.True(t, errors.Is(err, workflow.ErrUnknownTask))
	})

	t.Run("ScheduleFailure", func(t *testing.T) {
		svc := newService(t, nil)
		start(t, svc, "w1")
		task := decide(t, svc)
		bad := scheduleRun("a1")
		bad.ActivityType = workflow.Type{Name: "unknown", Version: "1"}
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{bad}))

		task = decide(t, svc)
		require.Equal(t, workflow.ScheduleActivityTaskFailed, task.Events[0].Type)
		assert.Equal(t, "ACTIVITY_TYPE_DOES_NOT_EXIST", task.Events[0].Reason)
	})

	t.Run("SignalDuringDecision", func(t *testing.T) {
		svc := newService(t, nil)
		start(t, svc, "w1")
		task := decide(t, svc)

		require.NoError(t, svc.SignalWorkflow(ctx, "w1", "progress", "Compilation failed"))
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, nil))

		task = decide(t, svc)
		require.Equal(t, []workflow.EventType{workflow.WorkflowExecutionSignaled}, eventTypes(task.Events))
	})

	t.Run("SignalClosed", func(t *testing.T) {
		svc := newService(t, nil)
		err := svc.SignalWorkflow(ctx, "missing", "progress", "")
		assert.True(t, errors.Is(err, workflow.ErrUnknownExecution))
	})

	t.Run("CancelRequest", func(t *testing.T) {
		svc := newService(t, nil)
		start(t, svc, "w1")
		task := decide(t, svc)
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, nil))

		require.NoError(t, svc.RequestCancelWorkflow(ctx, "w1"))
		task = decide(t, svc)
		require.Equal(t, workflow.WorkflowExecutionCancelRequested, task.Events[0].Type)
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{{Type: workflow.CancelWorkflowExecution}}))

		canceled, err := svc.CountClosedWorkflows(ctx, workflow.Filter{Statuses: []workflow.CloseStatus{workflow.StatusCanceled}})
		require.NoError(t, err)
		assert.Equal(t, 1, canceled)
	})

	t.Run("ActivityTimeout", func(t *testing.T) {
		c := &clock{t: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)}
		svc := newService(t, c)
		start(t, svc, "w1")
		task := decide(t, svc)
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, []workflow.Decision{scheduleRun("a1")}))

		activity, err := svc.PollForActivityTask(ctx, "work", "worker")
		require.NoError(t, err)
		require.NotNil(t, activity)

		c.Advance(2 * time.Minute)
		task = decide(t, svc)
		require.Equal(t, workflow.ActivityTaskTimedOut, task.Events[0].Type)
		assert.Equal(t, "a1", task.Events[0].ActivityID)

		err = svc.RespondActivityTaskCompleted(ctx, activity.Token, "late")
		assert.True(t, errors.Is(err, workflow.ErrUnknownTask))
	})

	t.Run("ExecutionTimeout", func(t *testing.T) {
		c := &clock{t: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)}
		svc := newService(t, c)
		start(t, svc, "w1")
		task := decide(t, svc)
		require.NoError(t, svc.RespondDecisionTaskCompleted(ctx, task.Token, nil))

		c.Advance(2 * time.Hour)
		task = decide(t, svc)
		require.Equal(t, workflow.WorkflowExecutionTimedOut, task.Events[0].Type)

		timedOut, err := svc.CountClosedWorkflows(ctx, workflow.Filter{Statuses: []workflow.CloseStatus{workflow.StatusTimedOut}})
		require.NoError(t, err)
		assert.Equal(t, 1, timedOut)
	})

	t.Run("CountWindow", func(t *testing.T) {
		c := &clock{t: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)}
		svc := newService(t, c)
		start(t, svc, "early")
		c.Advance(time.Hour)
		start(t, svc, "late")

		all, err := svc.CountOpenWorkflows(ctx, workflow.Filter{})
		require.NoError(t, err)
		assert.Equal(t, 2, all)

		recent, err := svc.CountOpenWorkflows(ctx, workflow.Filter{Since: c.Now().Add(-time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, 1, recent)
	})
}
