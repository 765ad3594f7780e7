// Package loadjob submits the asynchronous bulk load from the staging
// container into the partitioned table and reports job status.
package loadjob

import (
	"context"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_trigger.go -package=mocks github.com/iot-sensordata/stageload/internal/loadjob Trigger

// Status is the lifecycle state of a submitted load job
type Status string

const (
	// StatusQueued means the engine accepted the job but has not started it
	StatusQueued Status = "QUEUED"
	// StatusRunning means the job is executing
	StatusRunning Status = "RUNNING"
	// StatusSucceeded means the job finished and the staged data is loaded
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means the job finished without loading the data
	StatusFailed Status = "FAILED"
	// StatusCancelled means the job was cancelled before finishing
	StatusCancelled Status = "CANCELLED"
	// StatusUnknown covers anything else the engine reports, including an empty status
	StatusUnknown Status = "UNKNOWN"
)

// ParseStatus maps an engine status string onto Status. Matching is exact
// after trimming whitespace; anything unrecognized is StatusUnknown.
func ParseStatus(s string) Status {
	switch Status(strings.TrimSpace(s)) {
	case StatusQueued:
		return StatusQueued
	case StatusRunning:
		return StatusRunning
	case StatusSucceeded:
		return StatusSucceeded
	case StatusFailed:
		return StatusFailed
	case StatusCancelled:
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// Terminal reports whether the job has finished one way or another
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Trigger starts load jobs and reports their status
type Trigger interface {
	// Submit starts a load of everything in the staging container and returns the job reference
	Submit(ctx context.Context) (string, error)
	// Status returns the current status of a previously submitted job
	Status(ctx context.Context, jobID string) (Status, error)
}
