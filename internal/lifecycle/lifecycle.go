// Package lifecycle decides which workflow commands the dashboard may offer
// and sends them. The workflow service owns the state machine
// created -> running -> completed; this package only gates commands on the
// cached status and leaves final legality to the service.
package lifecycle

import "github.com/automata-tech/labdash/internal/lab"

// CanStart reports whether a start command may be attempted.
func CanStart(w lab.Workflow) bool {
	return w.Status == lab.WorkflowCreated
}

// CanComplete reports whether a complete command may be attempted.
func CanComplete(w lab.Workflow) bool {
	return w.Status == lab.WorkflowRunning
}

// Action is the single next command available for a workflow.
type Action string

const (
	ActionNone     Action = ""
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
)

// NextAction returns the one command legal from w's cached status. There is
// never more than one, so created cannot jump straight to completed.
func NextAction(w lab.Workflow) Action {
	switch {
	case CanStart(w):
		return ActionStart
	case CanComplete(w):
		return ActionComplete
	default:
		return ActionNone
	}
}
