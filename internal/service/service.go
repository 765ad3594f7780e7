// Package service provides the business logic behind the staged-load HTTP API
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iot-sensordata/stageload/internal/status"
)

var (
	// ErrNoRuns is returned when no run report has been recorded yet
	ErrNoRuns = errors.New("no run has been recorded")
	// ErrSchedulerDisabled is returned when a run is requested from a server without a scheduler
	ErrSchedulerDisabled = errors.New("scheduler is not running")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go RunService

// RunService defines the operations the HTTP API exposes over the coordinator
type RunService interface {
	// CheckReadiness checks that the run state backend can be read
	CheckReadiness(ctx context.Context) error

	// GetState returns the current run state record
	GetState(ctx context.Context) (*StateView, error)

	// GetLastRun returns the report of the most recent run
	GetLastRun(ctx context.Context) (*status.RunReport, error)

	// RequestRun asks the scheduler for an immediate run
	RequestRun(ctx context.Context) (*RunRequest, error)
}

// StateView is the API representation of the run state record
type StateView struct {
	// Kind is fresh, in_progress or submitted
	Kind string `json:"kind"`
	// JobID is set when Kind is submitted
	JobID string `json:"jobId,omitempty"`
	// Running reports whether a run is executing in this process
	Running bool `json:"running"`
}

// RunRequest acknowledges an accepted run request
type RunRequest struct {
	RequestedAt time.Time `json:"requestedAt"`
}
