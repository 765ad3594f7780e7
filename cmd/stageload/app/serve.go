package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/iot-sensordata/stageload/internal/app"
	"github.com/iot-sensordata/stageload/internal/telemetry"
	"github.com/iot-sensordata/stageload/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the status API",
	Long: `Run coordinator invocations on the configured interval (plus jitter) and serve
the status API. Intended for deployments without an external scheduler.

Endpoints:
  GET  /health, /readiness, /version, /openapi.json
  GET  /metrics            (when telemetry.metrics.prometheus is enabled)
  GET  /v1/state           current run state
  GET  /v1/status          last run report
  POST /v1/runs            request an immediate invocation`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	telemetryFlushTimeout  = 5 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides server.address)")
	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Error binding address flag", "error", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryCfg := cfg.Telemetry
	if telemetryCfg != nil && telemetryCfg.ServiceVersion == "" {
		telemetryCfg.ServiceVersion = versions.Version
	}
	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(telemetryCfg),
		telemetry.WithPipeline(telemetry.Pipeline{
			Component:         "serve",
			StateKey:          cfg.State.Key,
			IncomingContainer: cfg.Stage.IncomingContainer,
			StagingContainer:  cfg.Stage.StagingContainer,
		}))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := tel.Shutdown(flushCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	address := viper.GetString("address")
	if address == "" {
		address = cfg.Server.Address
	}

	opts := []app.StageloadAppOptions{
		app.WithConfig(cfg),
		app.WithAddress(address),
		app.WithMeterProvider(tel.MeterProvider()),
		app.WithTracerProvider(tel.TracerProvider()),
	}
	if h := tel.MetricsHandler(); h != nil {
		opts = append(opts, app.WithMetricsHandler(h))
	}

	stageloadApp, err := app.NewStageloadApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	slog.Info("Starting stageload server",
		"address", address,
		"interval", cfg.GetInterval(),
		"state_backend", cfg.State.Backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(stageloadApp.Start)
	g.Go(func() error {
		<-gctx.Done()
		return stageloadApp.Stop(defaultGracefulTimeout)
	})
	return g.Wait()
}
