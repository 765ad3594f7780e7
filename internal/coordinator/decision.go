package coordinator

import (
	"fmt"

	"github.com/iot-sensordata/stageload/internal/loadjob"
	"github.com/iot-sensordata/stageload/internal/runstate"
)

// Action is what a run does after reading the run state
type Action int

const (
	// ActionNone leaves every container and the run state untouched
	ActionNone Action = iota
	// ActionStage stages new objects and triggers a load, keeping staging as is
	ActionStage
	// ActionClearAndStage empties staging first, then stages and triggers a load
	ActionClearAndStage
)

// String returns the snake_case action name used in logs, metrics and reports
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionStage:
		return "stage"
	case ActionClearAndStage:
		return "clear_and_stage"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ClearsStaging reports whether staging is emptied before staging new objects
func (a Action) ClearsStaging() bool {
	return a == ActionClearAndStage
}

// Stages reports whether new objects are staged and a load is triggered
func (a Action) Stages() bool {
	return a == ActionStage || a == ActionClearAndStage
}

// Decide maps the prior run state and, for a submitted job, its status onto
// an action. jobStatus is ignored unless state is Submitted.
//
//	fresh, in progress            -> stage
//	submitted + SUCCEEDED         -> clear staging, then stage
//	submitted + FAILED, CANCELLED -> stage (staged data is loaded again)
//	submitted + QUEUED, RUNNING   -> none
//	submitted + anything else     -> none
func Decide(state runstate.State, jobStatus loadjob.Status) Action {
	switch state.Kind {
	case runstate.KindFresh, runstate.KindInProgress:
		return ActionStage
	case runstate.KindSubmitted:
		switch jobStatus {
		case loadjob.StatusSucceeded:
			return ActionClearAndStage
		case loadjob.StatusFailed, loadjob.StatusCancelled:
			return ActionStage
		default:
			return ActionNone
		}
	default:
		return ActionNone
	}
}
