package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iot-sensordata/stageload/internal/app/storage"
	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/runstate"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or repair the run state record",
	Long: `Inspect or repair the run state record. The record holds either the id of the
last submitted load job or an in-progress marker.

Repairing the record changes what the next invocation does:
  clear              next invocation stages without clearing staging
  set --in-progress  same as clear, but keeps the record present
  set --job-id ID    next invocation checks job ID and clears staging if it succeeded`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the run state record",
	RunE:  runStateShow,
}

var stateSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Overwrite the run state record",
	RunE:  runStateSet,
}

var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the run state record",
	RunE:  runStateClear,
}

func init() {
	stateCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	stateShowCmd.Flags().StringP("output", "o", outputTable, "Output format (table or json)")
	stateSetCmd.Flags().String("job-id", "", "Record a submitted load job")
	stateSetCmd.Flags().Bool("in-progress", false, "Record the in-progress marker")
	stateSetCmd.MarkFlagsMutuallyExclusive("job-id", "in-progress")
	stateSetCmd.MarkFlagsOneRequired("job-id", "in-progress")

	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateSetCmd)
	stateCmd.AddCommand(stateClearCmd)
}

// withStateStore opens the configured state backend for the duration of fn
func withStateStore(ctx context.Context, fn func(*config.Config, runstate.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	store, err := factory.CreateStateStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create run state store: %w", err)
	}
	return fn(cfg, store)
}

func runStateShow(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if err := validateOutput(format); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	return withStateStore(ctx, func(cfg *config.Config, store runstate.Store) error {
		state, err := store.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to read run state: %w", err)
		}
		return renderState(cmd.OutOrStdout(), format, cfg.State.Key, state)
	})
}

// stateFromFlags returns the state requested by set's flags
func stateFromFlags(cmd *cobra.Command) (runstate.State, error) {
	jobID, err := cmd.Flags().GetString("job-id")
	if err != nil {
		return runstate.State{}, fmt.Errorf("failed to get job-id flag: %w", err)
	}
	inProgress, err := cmd.Flags().GetBool("in-progress")
	if err != nil {
		return runstate.State{}, fmt.Errorf("failed to get in-progress flag: %w", err)
	}

	switch {
	case inProgress:
		return runstate.InProgress(), nil
	case jobID != "":
		if decoded, err := runstate.Decode(jobID); err != nil || decoded.Kind != runstate.KindSubmitted {
			return runstate.State{}, fmt.Errorf("job id %q is reserved for the in-progress marker", jobID)
		}
		return runstate.Submitted(jobID), nil
	default:
		return runstate.State{}, errors.New("one of --job-id or --in-progress is required")
	}
}

func confirmStateChange(cmd *cobra.Command, prompt string) (bool, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return false, fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return true, nil
	}
	return confirm(cmd.OutOrStdout(), cmd.InOrStdin(), prompt), nil
}

func runStateSet(cmd *cobra.Command, _ []string) error {
	state, err := stateFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	return withStateStore(ctx, func(cfg *config.Config, store runstate.Store) error {
		current, err := store.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to read run state: %w", err)
		}
		ok, err := confirmStateChange(cmd, fmt.Sprintf("Replace run state %s with %s?", current, state))
		if err != nil {
			return err
		}
		if !ok {
			slog.Info("State change cancelled")
			return nil
		}
		if err := store.Put(ctx, state); err != nil {
			return fmt.Errorf("failed to write run state: %w", err)
		}
		slog.Info("Run state updated", "key", cfg.State.Key, "previous", current.String(), "state", state.String())
		return nil
	})
}

func runStateClear(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	return withStateStore(ctx, func(cfg *config.Config, store runstate.Store) error {
		current, err := store.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to read run state: %w", err)
		}
		ok, err := confirmStateChange(cmd, fmt.Sprintf("Delete run state %s?", current))
		if err != nil {
			return err
		}
		if !ok {
			slog.Info("State change cancelled")
			return nil
		}
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear run state: %w", err)
		}
		slog.Info("Run state cleared", "key", cfg.State.Key, "previous", current.String())
		return nil
	})
}
