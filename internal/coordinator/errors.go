package coordinator

import (
	"errors"

	"github.com/iot-sensordata/stageload/internal/runstate"
)

var (
	// ErrStateRead means the run state could not be read or decoded. Nothing was changed.
	ErrStateRead = errors.New("run state read failed")

	// ErrStateWrite means the run state could not be written
	ErrStateWrite = errors.New("run state write failed")

	// ErrStagingTransfer means listing, copying or deleting objects failed. The run
	// state is unchanged or left at in-progress.
	ErrStagingTransfer = errors.New("staging transfer failed")

	// ErrLoadSubmission means the load job could not be submitted after the
	// objects were moved. The run state is left at in-progress.
	ErrLoadSubmission = errors.New("load submission failed")

	// ErrLoadStatusQuery means the status of the previous load job could not be
	// looked up. Nothing was changed.
	ErrLoadStatusQuery = errors.New("load status query failed")

	// ErrLoadStatusUnknown is recorded in the run report when the engine returns a
	// status the coordinator does not recognize. It is never returned by Run.
	ErrLoadStatusUnknown = errors.New("load job status unknown")

	// ErrLeaseHeld means another owner holds the run lease
	ErrLeaseHeld = runstate.ErrLeaseHeld

	// ErrRunInProgress means a run is already executing in this process
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrRunPending means an immediate run has already been requested and not yet started
	ErrRunPending = errors.New("a run has already been requested")

	// ErrNotStarted means the scheduler loop is not running
	ErrNotStarted = errors.New("coordinator is not started")
)
