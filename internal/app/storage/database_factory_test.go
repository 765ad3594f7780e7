package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iot-sensordata/stageload/database"
	"github.com/iot-sensordata/stageload/internal/config"
	"github.com/iot-sensordata/stageload/internal/runstate"
	"github.com/iot-sensordata/stageload/internal/status"
)

func databaseConfig(t *testing.T) *config.Config {
	t.Helper()

	pool, _ := database.SetupTestDB(t)
	connCfg := pool.Config().ConnConfig

	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte(connCfg.Password+"\n"), 0600))

	return &config.Config{
		State: config.StateConfig{
			Backend: config.StateBackendDatabase,
			Key:     runstate.DefaultKey,
		},
		Database: &config.DatabaseConfig{
			Host:            connCfg.Host,
			Port:            int(connCfg.Port),
			User:            connCfg.User,
			PasswordFile:    passwordFile,
			Database:        connCfg.Database,
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: "1h",
		},
	}
}

func TestNewDatabaseFactory(t *testing.T) {
	t.Parallel()

	t.Run("nil config returns error", func(t *testing.T) {
		t.Parallel()
		factory, err := NewDatabaseFactory(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config cannot be nil")
		assert.Nil(t, factory)
	})

	t.Run("missing database section returns error", func(t *testing.T) {
		t.Parallel()
		factory, err := NewDatabaseFactory(context.Background(), &config.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database configuration is required")
		assert.Nil(t, factory)
	})

	t.Run("invalid connMaxLifetime returns error", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Database: &config.DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "app",
			PasswordFile:    writePassword(t, "secret"),
			Database:        "app",
			ConnMaxLifetime: "forever",
		}}
		factory, err := NewDatabaseFactory(context.Background(), cfg)
		require.Error(t, err)
		assert.Nil(t, factory)
	})
}

func writePassword(t *testing.T, password string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte(password), 0600))
	return path
}

func TestDatabaseFactory_Components(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	factory, err := NewDatabaseFactory(ctx, databaseConfig(t))
	require.NoError(t, err)
	t.Cleanup(factory.Cleanup)
	require.NotNil(t, factory.Pool())

	store, err := factory.CreateStateStore(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, runstate.InProgress()))
	state, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, runstate.InProgress(), state)

	locker, err := factory.CreateLocker(ctx)
	require.NoError(t, err)
	lease, err := locker.Acquire(ctx, "owner-1", time.Minute)
	require.NoError(t, err)
	_, err = locker.Acquire(ctx, "owner-2", time.Minute)
	require.ErrorIs(t, err, runstate.ErrLeaseHeld)
	require.NoError(t, lease.Release(ctx))

	reports, err := factory.CreateStatusPersistence(ctx)
	require.NoError(t, err)
	require.NoError(t, reports.SaveStatus(ctx, runstate.DefaultKey, &status.RunReport{
		RunID: "run-1",
		Phase: status.RunPhaseSkipped,
	}))
	loaded, err := reports.LoadStatus(ctx, runstate.DefaultKey)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, status.RunPhaseSkipped, loaded.Phase)
}
