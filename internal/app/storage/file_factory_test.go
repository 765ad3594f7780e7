package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
)

func fileConfig(dataDir string) *config.Config {
	return &config.Config{State: config.StateConfig{
		Backend: config.StateBackendFile,
		Key:     runstate.DefaultKey,
		DataDir: dataDir,
	}}
}

func TestNewFileFactory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     func(t *testing.T) *config.Config
		wantErr string
	}{
		{
			name: "valid config with writable directory",
			cfg: func(t *testing.T) *config.Config {
				t.Helper()
				return fileConfig(t.TempDir())
			},
		},
		{
			name: "non-existent directory is created",
			cfg: func(t *testing.T) *config.Config {
				t.Helper()
				return fileConfig(filepath.Join(t.TempDir(), "new", "nested", "dir"))
			},
		},
		{
			name:    "nil config returns error",
			cfg:     func(*testing.T) *config.Config { return nil },
			wantErr: "config cannot be nil",
		},
		{
			name:    "missing data directory returns error",
			cfg:     func(*testing.T) *config.Config { return fileConfig("") },
			wantErr: "state.dataDir is required",
		},
		{
			name: "data directory blocked by a file",
			cfg: func(t *testing.T) *config.Config {
				t.Helper()
				blocker := filepath.Join(t.TempDir(), "blocker")
				require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
				return fileConfig(filepath.Join(blocker, "data"))
			},
			wantErr: "failed to create data directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg(t)
			factory, err := NewFileFactory(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, factory)
				return
			}

			require.NoError(t, err)
			assert.DirExists(t, cfg.State.DataDir)
			factory.Cleanup()
		})
	}
}

func TestFileFactory_Components(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dataDir := t.TempDir()
	factory, err := NewFileFactory(fileConfig(dataDir))
	require.NoError(t, err)

	store, err := factory.CreateStateStore(ctx)
	require.NoError(t, err)
	locker, err := factory.CreateLocker(ctx)
	require.NoError(t, err)
	reports, err := factory.CreateStatusPersistence(ctx)
	require.NoError(t, err)

	// The store and the locker share the same record
	assert.Same(t, store, locker)

	require.NoError(t, store.Put(ctx, runstate.Submitted("job-1")))
	assert.FileExists(t, filepath.Join(dataDir, runstate.DefaultKey+".json"))

	lease, err := locker.Acquire(ctx, "owner-1", 0)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))

	report := &status.RunReport{RunID: "run-1", Phase: status.RunPhaseComplete}
	require.NoError(t, reports.SaveStatus(ctx, runstate.DefaultKey, report))
	loaded, err := reports.LoadStatus(ctx, runstate.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.DirExists(t, filepath.Join(dataDir, statusDirName))
}
