package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iot-sensordata/stageload/internal/status"
)

// RunScheduled performs one run on behalf of a scheduler tick. A run skipped
// because another owner holds the lease is reported as Skipped with no error,
// so overlapping ticks do not surface as failures. A run that ends in the
// Failed phase is returned as an error.
func RunScheduled(ctx context.Context, c Coordinator) (*status.RunReport, error) {
	report, err := c.Run(ctx)
	if errors.Is(err, ErrLeaseHeld) {
		now := time.Now().UTC()
		return &status.RunReport{
			Phase:      status.RunPhaseSkipped,
			Message:    "Run lease is held by another owner",
			StartedAt:  now,
			FinishedAt: &now,
		}, nil
	}
	if err != nil {
		return report, err
	}
	if report != nil && report.Phase == status.RunPhaseFailed {
		return report, fmt.Errorf("run %s failed: %s", report.RunID, report.Error)
	}
	return report, nil
}
