// Package main runs one coordinator invocation per scheduled event.
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/iot-sensordata/stageload/internal/app"
	"github.com/iot-sensordata/stageload/internal/coordinator"
	"github.com/iot-sensordata/stageload/internal/lambdautil"
	"github.com/iot-sensordata/stageload/internal/logging"
	"github.com/iot-sensordata/stageload/internal/status"
)

var (
	log   *slog.Logger
	coord coordinator.Coordinator
)

func init() {
	log = logging.Setup()
	log.Info("Stageload: Cold Start")

	cfg, err := lambdautil.LoadConfig()
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}

	// Storage clients live for the lifetime of the execution environment
	coord, _, err = app.BuildCoordinator(context.Background(), app.WithConfig(cfg))
	if err != nil {
		panic(fmt.Errorf("failed to build coordinator: %w", err))
	}
}

func handleScheduledEvent(ctx context.Context, event events.EventBridgeEvent) (*status.RunReport, error) {
	log.InfoContext(ctx, "Scheduled invocation", "event_id", event.ID, "time", event.Time)

	return coordinator.RunScheduled(ctx, coord)
}

func main() {
	lambda.Start(lambdautil.Recover(handleScheduledEvent))
}
