// Package main publishes error-file landings and Glue job state changes to SNS.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/iot-sensordata/stageload/internal/awsutil"
	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/lambdautil"
	"github.com/iot-sensordata/stageload/internal/logging"
	"github.com/iot-sensordata/stageload/internal/notify"
)

var (
	log     *slog.Logger
	handler *notify.PipelineHandler
)

func init() {
	log = logging.Setup()
	log.Info("Pipeline Events: Cold Start")

	ctx := context.Background()
	cfg, err := lambdautil.LoadConfig(config.WithoutValidation())
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}
	awsCfg, err := awsutil.LoadConfig(ctx, cfg.AWS.Region)
	if err != nil {
		panic(err)
	}
	publisher, err := notify.NewSNSPublisher(sns.NewFromConfig(awsCfg), cfg.Notify.PipelineTopicARN)
	if err != nil {
		panic(fmt.Errorf("pipeline topic: %w", err))
	}
	handler = notify.NewPipelineHandler(publisher)
}

func handleEvent(ctx context.Context, raw json.RawMessage) error {
	return handler.HandleEvent(ctx, raw)
}

func main() {
	lambda.Start(lambdautil.RecoverErr(handleEvent))
}
