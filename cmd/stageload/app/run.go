package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iot-sensordata/stageload/internal/app"
	"github.com/iot-sensordata/stageload/internal/status"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one coordinator invocation",
	Long: `Run exactly one coordinator invocation: read the run state, check the last
load job, clear and stage objects as needed and submit the next load.

This is what the scheduled function does on every tick. Exits non-zero when the
invocation fails; the run state is left for the next invocation to recover from.`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringP("output", "o", outputTable, "Output format (table or json)")
}

func runOnce(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if err := validateOutput(format); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord, cleanup, err := app.BuildCoordinator(ctx, app.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build coordinator: %w", err)
	}
	defer cleanup()

	report, runErr := coord.Run(ctx)
	if err := renderReport(cmd.OutOrStdout(), format, report); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	if report != nil && report.Phase == status.RunPhaseFailed {
		return fmt.Errorf("run failed: %s", report.Error)
	}
	return nil
}

// ensure cobra hands commands a context even when executed without one
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
