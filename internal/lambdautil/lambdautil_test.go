package lambdautil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iot-sensordata/stageload/internal/config"
)

func TestRecover(t *testing.T) {
	t.Parallel()

	ok := Recover(func(_ context.Context, in int) (int, error) {
		return in * 2, nil
	})
	got, err := ok(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	sentinel := errors.New("boom")
	failing := Recover(func(_ context.Context, _ int) (int, error) {
		return 0, sentinel
	})
	_, err = failing(context.Background(), 1)
	assert.ErrorIs(t, err, sentinel)

	panicking := Recover(func(_ context.Context, _ string) (string, error) {
		panic("nil map")
	})
	out, err := panicking(context.Background(), "x")
	assert.ErrorContains(t, err, "nil map")
	assert.Empty(t, out)
}

func TestRecoverErr(t *testing.T) {
	t.Parallel()

	h := RecoverErr(func(_ context.Context, in []string) error {
		_ = in[3]
		return nil
	})
	assert.ErrorContains(t, h(context.Background(), nil), "handler panicked")

	h = RecoverErr(func(context.Context, []string) error { return nil })
	assert.NoError(t, h(context.Background(), nil))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stage:\n  incomingContainer: from-file\n"), 0600))

	t.Setenv(ConfigPathEnv, path)
	t.Setenv("STAGELOAD_STAGING_CONTAINER", "from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Stage.IncomingContainer)
	assert.Equal(t, "from-env", cfg.Stage.StagingContainer)

	t.Setenv(ConfigPathEnv, "")
	cfg, err = LoadConfig(config.WithoutValidation())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultIncomingContainer, cfg.Stage.IncomingContainer)
}
