package workflow

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyStarted   = errors.New("workflow execution already started")
	ErrUnknownExecution = errors.New("unknown workflow execution")
	ErrUnknownTask      = errors.New("unknown or expired task token")
	ErrUnknownType      = errors.New("type not registered")
)

type EventType string

const (
	WorkflowExecutionStarted         EventType = "WorkflowExecutionStarted"
	WorkflowExecutionSignaled        EventType = "WorkflowExecutionSignaled"
	WorkflowExecutionCancelRequested EventType = "WorkflowExecutionCancelRequested"
	WorkflowExecutionCompleted       EventType = "WorkflowExecutionCompleted"
	WorkflowExecutionFailed          EventType = "WorkflowExecutionFailed"
	WorkflowExecutionTimedOut        EventType = "WorkflowExecutionTimedOut"
	WorkflowExecutionCanceled        EventType = "WorkflowExecutionCanceled"
	DecisionTaskScheduled            EventType = "DecisionTaskScheduled"
	DecisionTaskStarted              EventType = "DecisionTaskStarted"
	DecisionTaskCompleted            EventType = "DecisionTaskCompleted"
	ActivityTaskScheduled            EventType = "ActivityTaskScheduled"
	ScheduleActivityTaskFailed       EventType = "ScheduleActivityTaskFailed"
	ActivityTaskStarted              EventType = "ActivityTaskStarted"
	ActivityTaskCompleted            EventType = "ActivityTaskCompleted"
	ActivityTaskFailed               EventType = "ActivityTaskFailed"
	ActivityTaskTimedOut             EventType = "ActivityTaskTimedOut"
)

type HistoryEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	// Workflow input, activity result or signal payload depending on Type
	Input      string `json:"input,omitempty"`
	SignalName string `json:"signal_name,omitempty"`
	ActivityID string `json:"activity_id,omitempty"`
	Identity   string `json:"identity,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Details    string `json:"details,omitempty"`
	ID         int64  `json:"id"`
}

type DecisionType string

const (
	ScheduleActivityTask      DecisionType = "ScheduleActivityTask"
	CompleteWorkflowExecution DecisionType = "CompleteWorkflowExecution"
	FailWorkflowExecution     DecisionType = "FailWorkflowExecution"
	CancelWorkflowExecution   DecisionType = "CancelWorkflowExecution"
)

type Decision struct {
	Type DecisionType `json:"type"`
	// ScheduleActivityTask only
	ActivityType Type   `json:"activity_type"`
	ActivityID   string `json:"activity_id,omitempty"`
	TaskList     string `json:"task_list,omitempty"`
	// Start to close timeout, the service default when zero
	Timeout time.Duration `json:"timeout,omitempty"`
	// Activity input or workflow result
	Input   string `json:"input,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

type Type struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type StartRequest struct {
	ID       string
	Type     Type
	TaskList string
	Input    string
}

type DecisionTask struct {
	Token      string
	WorkflowID string
	RunID      string
	Type       Type
	// Events since the previous decision, most recent first
	Events []HistoryEvent
}

type ActivityTask struct {
	Token        string
	WorkflowID   string
	RunID        string
	ActivityID   string
	ActivityType Type
	Input        string
}

type CloseStatus string

const (
	StatusOpen      CloseStatus = ""
	StatusCompleted CloseStatus = "completed"
	StatusFailed    CloseStatus = "failed"
	StatusCanceled  CloseStatus = "canceled"
	StatusTimedOut  CloseStatus = "timed_out"
)

// Executions started (open) or closed (closed) within [Since, Until). A zero Until means now.
type Filter struct {
	Since time.Time
	Until time.Time
	// Closed counts only: restrict to these statuses, all when empty
	Statuses []CloseStatus
}

//go:generate mockgen -destination ./mock/mock.go -package mock . Service

// Durable task coordination between one decider and many activity workers
type Service interface {
	// Registration is idempotent
	RegisterWorkflowType(ctx context.Context, t Type) error
	RegisterActivityType(ctx context.Context, t Type) error
	// Starts an execution and returns its run id. ErrAlreadyStarted if one with the same id is open.
	StartWorkflow(ctx context.Context, req StartRequest) (string, error)
	// Long poll; nil task and nil error when the poll timed out
	PollForDecisionTask(ctx context.Context, taskList, identity string) (*DecisionTask, error)
	RespondDecisionTaskCompleted(ctx context.Context, token string, decisions []Decision) error
	// Long poll; nil task and nil error when the poll timed out
	PollForActivityTask(ctx context.Context, taskList, identity string) (*ActivityTask, error)
	RespondActivityTaskCompleted(ctx context.Context, token, result string) error
	RespondActivityTaskFailed(ctx context.Context, token, reason, details string) error
	SignalWorkflow(ctx context.Context, workflowID, signalName, input string) error
	RequestCancelWorkflow(ctx context.Context, workflowID string) error
	CountOpenWorkflows(ctx context.Context, filter Filter) (int, error)
	CountClosedWorkflows(ctx context.Context, filter Filter) (int, error)
}
