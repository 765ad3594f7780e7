// Package main publishes temperature alert aggregates from the analytics stream to SNS.
package main

import (
	"context"
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
	handler *notify.AlertHandler
)

func init() {
	log = logging.Setup()
	log.Info("Alert Notifier: Cold Start")

	ctx := context.Background()
	cfg, err := lambdautil.LoadConfig(config.WithoutValidation())
	if err != nil {
		panic(fmt.Errorf("failed to load config: %w", err))
	}
	awsCfg, err := awsutil.LoadConfig(ctx, cfg.AWS.Region)
	if err != nil {
		panic(err)
	}
	publisher, err := notify.NewSNSPublisher(sns.NewFromConfig(awsCfg), cfg.Notify.AlertTopicARN)
	if err != nil {
		panic(fmt.Errorf("alert topic: %w", err))
	}
	handler = notify.NewAlertHandler(publisher)
}

func main() {
	lambda.Start(lambdautil.RecoverErr(handler.HandleKinesisEvent))
}
