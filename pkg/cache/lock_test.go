package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	t.Run("Success - acquire and release", func(t *testing.T) {
		lock, err := client.AcquireLock(ctx, "run:abc", "token-1", 30*time.Second)
		require.NoError(t, err)
		require.NotNil(t, lock)

		err = lock.Release(ctx)
		require.NoError(t, err)

		// Released lock can be taken again
		lock2, err := client.AcquireLock(ctx, "run:abc", "token-2", 30*time.Second)
		require.NoError(t, err)
		_ = lock2.Release(ctx)
	})

	t.Run("Error - second holder rejected", func(t *testing.T) {
		lock, err := client.AcquireLock(ctx, "run:busy", "token-1", 30*time.Second)
		require.NoError(t, err)
		defer lock.Release(ctx)

		_, err = client.AcquireLock(ctx, "run:busy", "token-2", 30*time.Second)
		assert.ErrorIs(t, err, ErrLockHeld)
	})

	t.Run("Success - expired lock is reacquirable", func(t *testing.T) {
		_, err := client.AcquireLock(ctx, "run:expiring", "token-1", 1*time.Second)
		require.NoError(t, err)

		mr.FastForward(2 * time.Second)

		lock2, err := client.AcquireLock(ctx, "run:expiring", "token-2", 30*time.Second)
		require.NoError(t, err)
		_ = lock2.Release(ctx)
	})

	t.Run("Success - stale release does not free new holder", func(t *testing.T) {
		stale, err := client.AcquireLock(ctx, "run:takeover", "token-old", 1*time.Second)
		require.NoError(t, err)

		mr.FastForward(2 * time.Second)

		fresh, err := client.AcquireLock(ctx, "run:takeover", "token-new", 30*time.Second)
		require.NoError(t, err)

		// Old holder releasing after takeover must be a no-op
		require.NoError(t, stale.Release(ctx))

		_, err = client.AcquireLock(ctx, "run:takeover", "token-third", 30*time.Second)
		assert.ErrorIs(t, err, ErrLockHeld)

		_ = fresh.Release(ctx)
	})
}
