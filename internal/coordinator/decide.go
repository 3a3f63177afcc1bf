package coordinator

import (
	"encoding/json"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/types"
	"github.com/maxg/didit-sub000/internal/workflow"
)

var (
	BuildWorkflow = workflow.Type{Name: "build", Version: "1"}
	BuildActivity = workflow.Type{Name: "run_build", Version: "1"}
)

const (
	DecisionTaskList = "didit-decisions"
	BuildTaskList    = "didit-builds"

	// Signal name workers use to report pipeline progress
	ProgressSignal  = "progress"
	buildActivityID = "build"
)

func fail(reason, details string) []workflow.Decision {
	return []workflow.Decision{{Type: workflow.FailWorkflowExecution, Reason: reason, Details: details}}
}

// Maps a decision task's history (most recent first) to the decisions to respond with and the
// build event to republish locally. Only the first recognized event is acted on. The returned
// event has no BuildID; callers fill it in from the workflow id.
func Decide(events []workflow.HistoryEvent) ([]workflow.Decision, *types.BuildEvent) {
	for _, ev := range events {
		switch ev.Type {
		case workflow.WorkflowExecutionStarted:
			var spec types.Spec
			if err := json.Unmarshal([]byte(ev.Input), &spec); err != nil {
				return fail("malformed build input", err.Error()), &types.BuildEvent{
					Type:   types.BuildEventFailed,
					Reason: "malformed build input",
				}
			}
			return []workflow.Decision{{
				Type:         workflow.ScheduleActivityTask,
				ActivityType: BuildActivity,
				ActivityID:   buildActivityID,
				TaskList:     BuildTaskList,
				Input:        ev.Input,
			}}, &types.BuildEvent{Type: types.BuildEventStart, Spec: &spec}

		case workflow.ActivityTaskCompleted:
			var record types.BuildRecord
			if err := json.Unmarshal([]byte(ev.Input), &record); err != nil {
				return fail("malformed build result", err.Error()), &types.BuildEvent{
					Type:   types.BuildEventFailed,
					Reason: "malformed build result",
				}
			}
			return []workflow.Decision{{
				Type:  workflow.CompleteWorkflowExecution,
				Input: ev.Input,
			}}, &types.BuildEvent{Type: types.BuildEventDone, Record: &record}

		case workflow.ActivityTaskFailed:
			return fail(ev.Reason, ev.Details), &types.BuildEvent{Type: types.BuildEventFailed, Reason: ev.Reason}

		case workflow.ActivityTaskTimedOut:
			return fail("build timed out", ev.Reason), &types.BuildEvent{Type: types.BuildEventFailed, Reason: "build timed out"}

		case workflow.ScheduleActivityTaskFailed:
			return fail("could not schedule build", ev.Reason), &types.BuildEvent{Type: types.BuildEventFailed, Reason: ev.Reason}

		case workflow.WorkflowExecutionSignaled:
			if ev.SignalName != ProgressSignal {
				continue
			}
			var progress types.Progress
			if err := json.Unmarshal([]byte(ev.Input), &progress); err != nil {
				logger.Logger.Warn("malformed progress signal", "input", ev.Input, "error", err)
				return nil, nil
			}
			return nil, &types.BuildEvent{Type: types.BuildEventProgress, Progress: &progress}

		case workflow.WorkflowExecutionFailed, workflow.WorkflowExecutionTimedOut:
			reason := ev.Reason
			if reason == "" {
				reason = "build workflow " + string(ev.Type)
			}
			return nil, &types.BuildEvent{Type: types.BuildEventFailed, Reason: reason}

		case workflow.WorkflowExecutionCancelRequested:
			return []workflow.Decision{{Type: workflow.CancelWorkflowExecution}},
				&types.BuildEvent{Type: types.BuildEventFailed, Reason: "build canceled"}
		}
	}
	return nil, nil
}
