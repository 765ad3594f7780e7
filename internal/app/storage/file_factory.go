package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
)

// statusDirName is the subdirectory of the data directory holding run reports
const statusDirName = "status"

// FileFactory creates file-based storage components.
// All components created by this factory use the local filesystem for persistence,
// so the lease only excludes processes on the same host.
type FileFactory struct {
	config  *config.Config
	dataDir string

	// Shared by the state store and the locker
	store             *runstate.FileStore
	statusPersistence status.StatusPersistence
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a new file-based storage factory.
// It ensures the data directory exists.
func NewFileFactory(cfg *config.Config) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	dataDir := cfg.State.DataDir
	if dataDir == "" {
		return nil, fmt.Errorf("state.dataDir is required for the file backend")
	}

	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	slog.Info("Creating file-based storage factory", "data_dir", dataDir)

	store, err := runstate.NewFileStore(dataDir, cfg.State.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create file state store: %w", err)
	}

	return &FileFactory{
		config:            cfg,
		dataDir:           dataDir,
		store:             store,
		statusPersistence: status.NewFileStatusPersistence(filepath.Join(dataDir, statusDirName)),
	}, nil
}

// CreateStateStore returns the file-backed run state store
func (f *FileFactory) CreateStateStore(_ context.Context) (runstate.Store, error) {
	slog.Debug("Creating file-based state store")
	return f.store, nil
}

// CreateLocker returns the file lock guarding the run state record
func (f *FileFactory) CreateLocker(_ context.Context) (runstate.Locker, error) {
	return f.store, nil
}

// CreateStatusPersistence returns the file-backed run report persistence
func (f *FileFactory) CreateStatusPersistence(_ context.Context) (status.StatusPersistence, error) {
	return f.statusPersistence, nil
}

// Cleanup is a no-op for file-based storage
func (*FileFactory) Cleanup() {}
