package workflow

import (
	"slices"
	"time"
)

type decisionState string

const (
	decisionIdle      decisionState = ""
	decisionScheduled decisionState = "scheduled"
	decisionStarted   decisionState = "started"
)

type activity struct {
	Scheduled time.Time     `json:"scheduled"`
	Deadline  time.Time     `json:"deadline,omitzero"`
	Type      Type          `json:"type"`
	ID        string        `json:"id"`
	Input     string        `json:"input"`
	TaskList  string        `json:"task_list"`
	Token     string        `json:"token,omitempty"`
	Timeout   time.Duration `json:"timeout"`
}

// Persisted state of one workflow execution
type execution struct {
	Started    time.Time            `json:"started"`
	Closed     time.Time            `json:"closed,omitzero"`
	Deadline   time.Time            `json:"deadline"`
	Activities map[string]*activity `json:"activities"`
	Type       Type                 `json:"type"`
	ID         string               `json:"id"`
	RunID      string               `json:"run_id"`
	TaskList   string               `json:"task_list"`
	Status     CloseStatus          `json:"status"`
	Decision   decisionState        `json:"decision"`
	Token      string               `json:"token,omitempty"`
	History    []HistoryEvent       `json:"history"`
	// History before this index has been handed to a decider
	Delivered int `json:"delivered"`
	// Events arrived while a decision was in flight
	Stale bool `json:"stale"`
}

func (e *execution) open() bool {
	return e.Status == StatusOpen
}

func (e *execution) append(now time.Time, ev HistoryEvent) {
	ev.ID = int64(len(e.History) + 1)
	ev.Timestamp = now
	e.History = append(e.History, ev)
}

// Asks for a decision. True when the caller must enqueue a decision task.
func (e *execution) wake(now time.Time) bool {
	switch e.Decision {
	case decisionIdle:
		e.Decision = decisionScheduled
		e.append(now, HistoryEvent{Type: DecisionTaskScheduled})
		return true
	case decisionStarted:
		e.Stale = true
	}
	return false
}

func (e *execution) close(now time.Time, status CloseStatus, ev HistoryEvent) {
	e.Status = status
	e.Closed = now
	e.append(now, ev)
	e.Activities = map[string]*activity{}
}

// Undelivered events that matter to a decider, most recent first
func (e *execution) undelivered() []HistoryEvent {
	var events []HistoryEvent
	for _, ev := range e.History[e.Delivered:] {
		switch ev.Type {
		case DecisionTaskScheduled, DecisionTaskStarted, DecisionTaskCompleted:
			continue
		}
		events = append(events, ev)
	}
	slices.Reverse(events)
	return events
}
