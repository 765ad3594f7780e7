package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/iot-sensordata/stageload/internal/loadjob"
	"github.com/iot-sensordata/stageload/internal/otel"
	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
)

// Run performs one invocation of the staged-load protocol
func (c *defaultCoordinator) Run(ctx context.Context) (*status.RunReport, error) {
	if !c.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer c.runMu.Unlock()
	c.running.Store(true)
	defer c.running.Store(false)

	if c.locker != nil {
		lease, err := c.locker.Acquire(ctx, c.owner, c.config.LeaseTTL)
		if err != nil {
			if errors.Is(err, runstate.ErrLeaseHeld) {
				slog.InfoContext(ctx, "Run lease is held by another owner, skipping run", "owner", c.owner)
				return nil, err
			}
			return nil, fmt.Errorf("failed to acquire run lease: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "Failed to release run lease", "owner", c.owner, "error", err)
			}
		}()
	}

	report := &status.RunReport{
		RunID:     ksuid.New().String(),
		Phase:     status.RunPhaseRunning,
		StartedAt: c.now(),
	}

	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.Run",
		trace.WithAttributes(otel.AttrRunID.String(report.RunID)),
	)
	defer span.End()

	c.saveReport(ctx, report)

	err := c.run(ctx, report)

	finished := c.now()
	report.FinishedAt = &finished
	if err != nil {
		report.Phase = status.RunPhaseFailed
		report.Error = err.Error()
		otel.RecordError(span, err)
	}
	span.SetAttributes(otel.AttrRunDecision.String(report.Decision))

	c.runMetrics.RecordRunDuration(ctx, report.Decision, report.Duration(), err == nil)
	c.saveReport(context.WithoutCancel(ctx), report)

	return report, err
}

// run decides and executes the action, filling in the report as it goes.
// On success report.Phase is set to Complete or Skipped.
func (c *defaultCoordinator) run(ctx context.Context, report *status.RunReport) error {
	state, jobStatus, err := c.readPriorState(ctx)
	if err != nil {
		return err
	}
	report.PriorState = state.String()
	if state.Kind == runstate.KindSubmitted {
		report.JobStatus = string(jobStatus)
	}

	action := Decide(state, jobStatus)
	report.Decision = action.String()

	slog.InfoContext(ctx, "Determined run action",
		"run_id", report.RunID,
		"prior_state", report.PriorState,
		"job_status", report.JobStatus,
		"decision", report.Decision)

	if !action.Stages() {
		report.Phase = status.RunPhaseSkipped
		if jobStatus == loadjob.StatusQueued || jobStatus == loadjob.StatusRunning {
			report.Message = fmt.Sprintf("Load job %s is %s, nothing to do", state.JobID, jobStatus)
			return nil
		}
		warning := fmt.Errorf("%w: job %s reported %q", ErrLoadStatusUnknown, state.JobID, jobStatus)
		slog.WarnContext(ctx, "Load job status not recognized, taking no action",
			"run_id", report.RunID, "job_id", state.JobID, "job_status", string(jobStatus))
		report.Warning = warning.Error()
		report.Message = "Load job status not recognized, nothing to do"
		return nil
	}

	if action.ClearsStaging() {
		cleared, err := c.clearStaging(ctx)
		report.ClearedCount = cleared
		if err != nil {
			return err
		}
	}

	return c.stageAndTrigger(ctx, report)
}

// readPriorState reads the run state and, for a submitted job, its status
func (c *defaultCoordinator) readPriorState(ctx context.Context) (runstate.State, loadjob.Status, error) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.readPriorState")
	defer span.End()

	state, err := c.store.Get(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStateRead, err)
		otel.RecordError(span, err)
		return runstate.State{}, "", err
	}
	span.SetAttributes(otel.AttrPriorState.String(state.String()))

	if state.Kind != runstate.KindSubmitted {
		return state, "", nil
	}

	jobStatus, err := c.trigger.Status(ctx, state.JobID)
	if err != nil {
		err = fmt.Errorf("%w: job %s: %w", ErrLoadStatusQuery, state.JobID, err)
		otel.RecordError(span, err)
		return runstate.State{}, "", err
	}
	span.SetAttributes(
		otel.AttrJobID.String(state.JobID),
		otel.AttrJobStatus.String(string(jobStatus)),
	)
	return state, jobStatus, nil
}

// clearStaging deletes every object in the staging container
func (c *defaultCoordinator) clearStaging(ctx context.Context) (int, error) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.clearStaging",
		trace.WithAttributes(otel.AttrContainer.String(c.config.StagingContainer)),
	)
	defer span.End()

	keys, err := c.stager.List(ctx, c.config.StagingContainer)
	if err != nil {
		err = fmt.Errorf("%w: listing staging: %w", ErrStagingTransfer, err)
		otel.RecordError(span, err)
		return 0, err
	}
	span.SetAttributes(otel.AttrObjectCount.Int(len(keys)))
	if len(keys) == 0 {
		slog.InfoContext(ctx, "Staging container is already empty", "container", c.config.StagingContainer)
		return 0, nil
	}

	if err := c.stager.Delete(ctx, c.config.StagingContainer, keys); err != nil {
		err = fmt.Errorf("%w: clearing staging: %w", ErrStagingTransfer, err)
		otel.RecordError(span, err)
		return 0, err
	}
	c.runMetrics.RecordObjectsCleared(ctx, len(keys))
	slog.InfoContext(ctx, "Cleared staging container", "container", c.config.StagingContainer, "count", len(keys))
	return len(keys), nil
}

// stageAndTrigger moves new objects from incoming to staging and submits a load.
// The in-progress marker is written before anything is removed from incoming.
func (c *defaultCoordinator) stageAndTrigger(ctx context.Context, report *status.RunReport) error {
	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.stageAndTrigger")
	defer span.End()

	incoming, err := c.stager.List(ctx, c.config.IncomingContainer)
	if err != nil {
		err = fmt.Errorf("%w: listing incoming: %w", ErrStagingTransfer, err)
		otel.RecordError(span, err)
		return err
	}

	for _, key := range incoming {
		if err := c.stager.Copy(ctx, c.config.IncomingContainer, key, c.config.StagingContainer); err != nil {
			err = fmt.Errorf("%w: copying %q: %w", ErrStagingTransfer, key, err)
			otel.RecordError(span, err)
			return err
		}
		report.CopiedCount++
	}
	otel.MarkStep(span, otel.StepObjectsCopied, otel.AttrObjectCount.Int(report.CopiedCount))

	// The deletion set comes from staging, so only objects that made it there
	// are ever removed from incoming.
	staged, err := c.stager.List(ctx, c.config.StagingContainer)
	if err != nil {
		err = fmt.Errorf("%w: listing staging: %w", ErrStagingTransfer, err)
		otel.RecordError(span, err)
		return err
	}
	span.SetAttributes(otel.AttrObjectCount.Int(len(staged)))

	if len(staged) == 0 {
		slog.InfoContext(ctx, "No objects to stage", "container", c.config.IncomingContainer)
		report.Phase = status.RunPhaseSkipped
		report.Message = "No new objects to stage"
		return nil
	}

	if err := c.store.Put(ctx, runstate.InProgress()); err != nil {
		err = fmt.Errorf("%w: %w", ErrStateWrite, err)
		otel.RecordError(span, err)
		return err
	}
	otel.MarkStep(span, otel.StepInProgressRecorded)

	if err := c.stager.Delete(ctx, c.config.IncomingContainer, staged); err != nil {
		err = fmt.Errorf("%w: removing staged objects from incoming: %w", ErrStagingTransfer, err)
		otel.RecordError(span, err)
		return err
	}
	report.StagedCount = len(staged)
	c.runMetrics.RecordObjectsStaged(ctx, len(staged))
	otel.MarkStep(span, otel.StepIncomingCleared, otel.AttrObjectCount.Int(len(staged)))

	jobID, err := c.trigger.Submit(ctx)
	c.runMetrics.RecordLoadSubmission(ctx, err == nil)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrLoadSubmission, err)
		otel.RecordError(span, err)
		return err
	}
	report.SubmittedJobID = jobID
	span.SetAttributes(otel.AttrJobID.String(jobID))
	otel.MarkStep(span, otel.StepJobSubmitted)

	if err := c.store.Put(ctx, runstate.Submitted(jobID)); err != nil {
		err = fmt.Errorf("%w: recording job %s: %w", ErrStateWrite, jobID, err)
		otel.RecordError(span, err)
		return err
	}
	otel.MarkStep(span, otel.StepSubmittedRecorded)

	slog.InfoContext(ctx, "Submitted load job",
		"run_id", report.RunID,
		"job_id", jobID,
		"staged_count", len(staged),
		"copied_count", report.CopiedCount)

	report.Phase = status.RunPhaseComplete
	report.Message = fmt.Sprintf("Staged %d object(s) and submitted load job %s", len(staged), jobID)
	return nil
}

// saveReport persists the report if status persistence is configured.
// Failures are logged; the report never affects the protocol.
func (c *defaultCoordinator) saveReport(ctx context.Context, report *status.RunReport) {
	if c.statusPersistence == nil {
		return
	}
	if err := c.statusPersistence.SaveStatus(ctx, c.config.StateKey, report); err != nil {
		slog.WarnContext(ctx, "Failed to save run report", "run_id", report.RunID, "error", err)
	}
}
