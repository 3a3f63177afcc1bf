package types

type BuildEventType string

const (
	BuildEventStart    BuildEventType = "start"
	BuildEventProgress BuildEventType = "progress"
	BuildEventDone     BuildEventType = "done"
	BuildEventFailed   BuildEventType = "failed"
)

// Build lifecycle event republished to local listeners
type BuildEvent struct {
	Progress *Progress      `json:"progress,omitempty"`
	Record   *BuildRecord   `json:"record,omitempty"`
	Spec     *Spec          `json:"spec,omitempty"`
	Type     BuildEventType `json:"type"`
	BuildID  BuildID        `json:"build_id"`
	Reason   string         `json:"reason,omitempty"`
}

// Terminal events end a build's event stream
func (e BuildEvent) Terminal() bool {
	return e.Type == BuildEventDone || e.Type == BuildEventFailed
}

// Message enqueued by repository hooks and tooling asking for a build
type BuildRequest struct {
	Spec Spec `json:"spec" validate:"required"`
	// Ref to resolve when spec has no rev
	Ref string `json:"ref,omitempty"`
}

const (
	ExitNormal  int = 0
	ExitErrored int = 1
	ExitUsage   int = 2
)
