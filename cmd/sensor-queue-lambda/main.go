// Package main stores sensor readings delivered in batches from an SQS queue.
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/iot-sensordata/stageload/internal/app/storage"
	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/ingest"
	"github.com/iot-sensordata/stageload/internal/lambdautil"
	"github.com/iot-sensordata/stageload/internal/logging"
	"github.com/iot-sensordata/stageload/internal/telemetry"
)

var (
	log     *slog.Logger
	handler *ingest.Handler
)

func init() {
	log = logging.Setup()
	log.Info("Sensor Queue: Cold Start")

	var err error
	handler, err = newHandler(context.Background())
	if err != nil {
		panic(err)
	}
}

func newHandler(ctx context.Context) (*ingest.Handler, error) {
	cfg, err := lambdautil.LoadConfig(config.WithoutValidation())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	pool, err := storage.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	validator, err := ingest.NewValidator()
	if err != nil {
		return nil, err
	}
	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithPipeline(telemetry.Pipeline{Component: "sensor-queue"}))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	metrics, err := telemetry.NewIngestMetrics(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}
	return ingest.NewHandler(validator, ingest.NewWriter(pool), ingest.WithMetrics(metrics)), nil
}

func main() {
	lambda.Start(lambdautil.Recover(handler.HandleSQSEvent))
}
