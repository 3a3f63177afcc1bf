package coordinator_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxg/didit-sub000/internal/coordinator"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/workflow"
)

var alice = types.Spec{Kind: "labs", Proj: "lab1", Users: []string{"alice"}, Rev: "aaaa123"}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestDecide(t *testing.T) {
	t.Run("Started", func(t *testing.T) {
		input := mustJSON(t, alice)
		decisions, ev := coordinator.Decide([]workflow.HistoryEvent{
			{Type: workflow.WorkflowExecutionStarted, Input: input},
		})
		require.Len(t, decisions, 1)
		assert.Equal(t, workflow.ScheduleActivityTask, decisions[0].Type)
		assert.Equal(t, coordinator.BuildActivity, decisions[0].ActivityType)
		assert.Equal(t, coordinator.BuildTaskList, decisions[0].TaskList)
		assert.Equal(t, input, decisions[0].Input)

		require.NotNil(t, ev)
		assert.Equal(t, types.BuildEventStart, ev.Type)
		assert.Equal(t, alice, *ev.Spec)
	})

	t.Run("Completed", func(t *testing.T) {
		record := types.BuildRecord{Spec: alice, CompileSucceeded: true, Grade: &types.Score{Score: 3, OutOf: 5}}
		result := mustJSON(t, record)
		decisions, ev := coordinator.Decide([]workflow.HistoryEvent{
			{Type: workflow.ActivityTaskCompleted, Input: result},
			{Type: workflow.ActivityTaskStarted},
		})
		require.Len(t, decisions, 1)
		assert.Equal(t, workflow.CompleteWorkflowExecution, decisions[0].Type)
		assert.Equal(t, result, decisions[0].Input)

		require.NotNil(t, ev)
		assert.Equal(t, types.BuildEventDone, ev.Type)
		assert.True(t, ev.Record.CompileSucceeded)
		assert.Equal(t, 3.0, ev.Record.Grade.Score)
	})

	failing := map[string]workflow.HistoryEvent{
		"ActivityTimedOut":   {Type: workflow.ActivityTaskTimedOut},
		"ActivityFailed":     {Type: workflow.ActivityTaskFailed, Reason: "worker crashed"},
		"ScheduleFailed":     {Type: workflow.ScheduleActivityTaskFailed, Reason: "ACTIVITY_TYPE_DOES_NOT_EXIST"},
		"MalformedResult":    {Type: workflow.ActivityTaskCompleted, Input: "{"},
		"MalformedStartSpec": {Type: workflow.WorkflowExecutionStarted, Input: "nope"},
	}
	for name, event := range failing {
		t.Run(name, func(t *testing.T) {
			decisions, ev := coordinator.Decide([]workflow.HistoryEvent{event})
			require.Len(t, decisions, 1)
			assert.Equal(t, workflow.FailWorkflowExecution, decisions[0].Type)
			require.NotNil(t, ev)
			assert.Equal(t, types.BuildEventFailed, ev.Type)
			assert.NotEmpty(t, ev.Reason)
		})
	}

	for _, terminal := range []workflow.EventType{workflow.WorkflowExecutionFailed, workflow.WorkflowExecutionTimedOut} {
		t.Run(string(terminal), func(t *testing.T) {
			decisions, ev := coordinator.Decide([]workflow.HistoryEvent{{Type: terminal}})
			assert.Empty(t, decisions)
			require.NotNil(t, ev)
			assert.Equal(t, types.BuildEventFailed, ev.Type)
		})
	}

	t.Run("CancelRequested", func(t *testing.T) {
		decisions, ev := coordinator.Decide([]workflow.HistoryEvent{{Type: workflow.WorkflowExecutionCancelRequested}})
		require.Len(t, decisions, 1)
		assert.Equal(t, workflow.CancelWorkflowExecution, decisions[0].Type)
		assert.Equal(t, types.BuildEventFailed, ev.Type)
	})

	t.Run("Progress", func(t *testing.T) {
		decisions, ev := coordinator.Decide([]workflow.HistoryEvent{{
			Type:       workflow.WorkflowExecutionSignaled,
			SignalName: coordinator.ProgressSignal,
			Input:      mustJSON(t, types.Progress{Message: "Checked out aaaa123", Rev: "aaaa123"}),
		}})
		assert.Empty(t, decisions)
		require.NotNil(t, ev)
		assert.Equal(t, types.BuildEventProgress, ev.Type)
		assert.Equal(t, "Checked out aaaa123", ev.Progress.Message)
	})

	t.Run("FirstRecognizedWins", func(t *testing.T) {
		decisions, ev := coordinator.Decide([]workflow.HistoryEvent{
			{Type: workflow.ActivityTaskStarted},
			{Type: workflow.WorkflowExecutionSignaled, SignalName: "other"},
			{Type: workflow.ActivityTaskTimedOut},
			{Type: workflow.WorkflowExecutionStarted, Input: mustJSON(t, alice)},
		})
		require.Len(t, decisions, 1)
		assert.Equal(t, workflow.FailWorkflowExecution, decisions[0].Type)
		assert.Equal(t, types.BuildEventFailed, ev.Type)
	})

	t.Run("NothingRecognized", func(t *testing.T) {
		decisions, ev := coordinator.Decide([]workflow.HistoryEvent{{Type: workflow.ActivityTaskStarted}})
		assert.Empty(t, decisions)
		assert.Nil(t, ev)
	})
}

func TestRegistry(t *testing.T) {
	id := types.NewBuildID(alice)

	t.Run("Delivers", func(t *testing.T) {
		r := coordinator.NewRegistry()
		first := r.Subscribe(id)
		second := r.Subscribe(id)
		other := r.Subscribe("elsewhere")

		r.Publish(types.BuildEvent{BuildID: id, Type: types.BuildEventStart})
		assert.Equal(t, types.BuildEventStart, (<-first.Events()).Type)
		assert.Equal(t, types.BuildEventStart, (<-second.Events()).Type)
		assert.Empty(t, other.Events())
	})

	t.Run("CancelUnregisters", func(t *testing.T) {
		r := coordinator.NewRegistry()
		m := r.Subscribe(id)
		assert.Equal(t, 1, r.Len())
		m.Cancel()
		m.Cancel()
		assert.Equal(t, 0, r.Len())

		r.Publish(types.BuildEvent{BuildID: id, Type: types.BuildEventStart})
		assert.Empty(t, m.Events())
	})

	t.Run("TerminalDetaches", func(t *testing.T) {
		r := coordinator.NewRegistry()
		m := r.Subscribe(id)
		r.Publish(types.BuildEvent{BuildID: id, Type: types.BuildEventDone})
		assert.Equal(t, 0, r.Len())

		ev, err := m.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.BuildEventDone, ev.Type)
	})

	t.Run("TerminalNeverDropped", func(t *testing.T) {
		r := coordinator.NewRegistry()
		m := r.Subscribe(id)
		for range 100 {
			r.Publish(types.BuildEvent{BuildID: id, Type: types.BuildEventProgress})
		}
		r.Publish(types.BuildEvent{BuildID: id, Type: types.BuildEventFailed, Reason: "boom"})

		ev, err := m.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "boom", ev.Reason)
	})

	t.Run("WaitGivesUp", func(t *testing.T) {
		r := coordinator.NewRegistry()
		m := r.Subscribe(id)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Wait(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
