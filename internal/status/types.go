package status

import "time"

// RunPhase represents the phase of a coordinator run
type RunPhase string

const (
	// RunPhaseRunning means a run is currently in progress
	RunPhaseRunning RunPhase = "Running"

	// RunPhaseComplete means the run finished and did its work
	RunPhaseComplete RunPhase = "Complete"

	// RunPhaseSkipped means the run finished without touching any object,
	// either because the load job is still pending or nothing new arrived
	RunPhaseSkipped RunPhase = "Skipped"

	// RunPhaseFailed means the run stopped on an error
	RunPhaseFailed RunPhase = "Failed"
)

// RunReport describes the outcome of one coordinator invocation.
// It is informational only: the run state record alone drives recovery.
type RunReport struct {
	// RunID identifies the invocation in logs and traces
	RunID string `json:"runId" yaml:"runId"`

	// Phase is the overall outcome
	Phase RunPhase `json:"phase" yaml:"phase"`

	// Message is a human-readable summary
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// StartedAt is when the run began
	StartedAt time.Time `json:"startedAt" yaml:"startedAt"`

	// FinishedAt is when the run ended; nil while running
	FinishedAt *time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`

	// PriorState is the run state read at the start of the run
	PriorState string `json:"priorState,omitempty" yaml:"priorState,omitempty"`

	// JobStatus is the status reported for the previously submitted load job, if any
	JobStatus string `json:"jobStatus,omitempty" yaml:"jobStatus,omitempty"`

	// Decision is the action taken: none, stage or clear_and_stage
	Decision string `json:"decision,omitempty" yaml:"decision,omitempty"`

	// ClearedCount is the number of objects deleted from staging
	ClearedCount int `json:"clearedCount" yaml:"clearedCount"`

	// CopiedCount is the number of incoming objects copied into staging
	CopiedCount int `json:"copiedCount" yaml:"copiedCount"`

	// StagedCount is the number of staged objects removed from incoming and handed to the load
	StagedCount int `json:"stagedCount" yaml:"stagedCount"`

	// SubmittedJobID is the load job submitted by this run, if any
	SubmittedJobID string `json:"submittedJobId,omitempty" yaml:"submittedJobId,omitempty"`

	// Warning carries a condition that did not fail the run, such as an unrecognized job status
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`

	// Error is the error text when Phase is Failed
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running
func (r *RunReport) Duration() time.Duration {
	if r == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
