package runstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iot-sensordata/stageload/database"
)

func TestDBStore(t *testing.T) {
	t.Parallel()

	pool, _ := database.SetupTestDB(t)
	ctx := context.Background()

	t.Run("get put clear", func(t *testing.T) {
		store := NewDBStore(pool, "state-crud")

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, Fresh(), got)

		require.NoError(t, store.Put(ctx, InProgress()))
		got, err = store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, InProgress(), got)

		require.NoError(t, store.Put(ctx, Submitted("job-42")))
		got, err = store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, Submitted("job-42"), got)

		require.NoError(t, store.Clear(ctx))
		got, err = store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, Fresh(), got)
	})

	t.Run("legacy marker row", func(t *testing.T) {
		_, err := pool.Exec(ctx, `INSERT INTO run_state (key, value) VALUES ('state-legacy', 'ETLINPROGRESS')`)
		require.NoError(t, err)

		got, err := NewDBStore(pool, "state-legacy").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, InProgress(), got)
	})

	t.Run("empty value row is malformed", func(t *testing.T) {
		_, err := pool.Exec(ctx, `INSERT INTO run_state (key, value) VALUES ('state-empty', '')`)
		require.NoError(t, err)

		_, err = NewDBStore(pool, "state-empty").Get(ctx)
		assert.ErrorIs(t, err, ErrMalformedRecord)
	})

	t.Run("lease", func(t *testing.T) {
		store := NewDBStore(pool, "state-lease")

		lease, err := store.Acquire(ctx, "owner-a", time.Minute)
		require.NoError(t, err)

		_, err = store.Acquire(ctx, "owner-b", time.Minute)
		assert.ErrorIs(t, err, ErrLeaseHeld)

		require.NoError(t, lease.Release(ctx))

		lease, err = store.Acquire(ctx, "owner-b", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lease.Release(ctx))
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		store := NewDBStore(pool, "state-expired")

		_, err := store.Acquire(ctx, "owner-a", -time.Second)
		require.NoError(t, err)

		lease, err := store.Acquire(ctx, "owner-b", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lease.Release(ctx))
	})
}
