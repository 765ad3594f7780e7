package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iot-sensordata/stageload/internal/app/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the report of the last run",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", outputTable, "Output format (table or json)")
}

func runStatus(cmd *cobra.Command, _ []string) error {
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

	ctx := commandContext(cmd)
	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	reports, err := factory.CreateStatusPersistence(ctx)
	if err != nil {
		return fmt.Errorf("failed to create status persistence: %w", err)
	}
	report, err := reports.LoadStatus(ctx, cfg.State.Key)
	if err != nil {
		return fmt.Errorf("failed to load last run report: %w", err)
	}
	return renderReport(cmd.OutOrStdout(), format, report)
}
