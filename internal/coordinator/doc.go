// Package coordinator moves newly arrived sensor objects from the incoming
// container into the staging container and triggers the batch load that
// reads from staging.
//
// Each invocation reads the persisted run state, decides what to do and then
// performs at most one staging step and one load submission. The load itself
// runs asynchronously in the query engine; its outcome is picked up by the
// next invocation.
//
// # Core Interface
//
//	type Coordinator interface {
//	    Run(ctx context.Context) (*status.RunReport, error) // One invocation
//	    Start(ctx context.Context) error                    // Scheduled runs until cancelled
//	    Stop() error                                        // Graceful shutdown
//	    TriggerNow() error                                  // Ask the loop for an immediate run
//	    Running() bool
//	}
//
// # Usage Example
//
//	coord, err := coordinator.New(stateStore, stager, trigger, coordinator.Config{
//	    IncomingContainer: "iot-sensordata-messages",
//	    StagingContainer:  "iot-sensordata-staging",
//	}, coordinator.WithLocker(locker))
//	if err != nil {
//	    return err
//	}
//
//	// Scheduled or serverless invocation
//	report, err := coord.Run(ctx)
//
// # Decision Flow
//
//  1. Read the run state (fresh, in progress or submitted job)
//  2. For a submitted job, ask the load trigger for its status
//  3. Decide: stage, clear staging and stage, or do nothing
//  4. Clear staging when the previous load succeeded
//  5. Copy incoming objects to staging, re-list staging, write the in-progress
//     marker, delete the staged keys from incoming, submit the load and record
//     the job id
//
// # Error Handling
//
// Errors are wrapped around exported sentinels (ErrStateRead, ErrStagingTransfer,
// ErrLoadSubmission and so on) so callers can use errors.Is. Nothing is retried
// within a run. A failure after the in-progress marker is written leaves the
// marker in place, and the next run stages again without clearing staging.
//
// An unrecognized job status is not an error: the run takes no action and the
// condition is recorded as a warning in the run report.
//
// # Concurrency
//
// One run executes at a time per process. Across processes, a Locker can be
// configured to hold a lease on the run state record for the duration of a run.
package coordinator
