package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannerhq/vendorbook/pkg/cache"
)

func setupRevocations(t *testing.T) (*RevocationList, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := &cache.Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { client.Close() })
	return NewRevocationList(client), mr
}

func TestRevocationList(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - revoked token is reported revoked", func(t *testing.T) {
		revocations, _ := setupRevocations(t)

		require.NoError(t, revocations.Revoke(ctx, "header.payload.signature", time.Hour))

		revoked, err := revocations.IsRevoked(ctx, "header.payload.signature")
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("Success - unknown token is not revoked", func(t *testing.T) {
		revocations, _ := setupRevocations(t)

		revoked, err := revocations.IsRevoked(ctx, "never.seen.token")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("Success - revocation ages out with the token lifetime", func(t *testing.T) {
		revocations, mr := setupRevocations(t)

		require.NoError(t, revocations.Revoke(ctx, "short.lived.token", time.Second))
		revoked, err := revocations.IsRevoked(ctx, "short.lived.token")
		require.NoError(t, err)
		assert.True(t, revoked)

		mr.FastForward(2 * time.Second)

		revoked, err = revocations.IsRevoked(ctx, "short.lived.token")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("Success - revoking one token leaves others valid", func(t *testing.T) {
		revocations, _ := setupRevocations(t)

		require.NoError(t, revocations.Revoke(ctx, "first.token.here", time.Hour))

		revoked, err := revocations.IsRevoked(ctx, "second.token.here")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("Success - only a digest lands in Redis", func(t *testing.T) {
		revocations, mr := setupRevocations(t)
		token := "header.payload.top-secret-signature"

		require.NoError(t, revocations.Revoke(ctx, token, time.Hour))

		keys := mr.Keys()
		require.Len(t, keys, 1)
		assert.True(t, strings.HasPrefix(keys[0], "auth:revoked:"))
		assert.NotContains(t, keys[0], "top-secret-signature")
		// sha256 hex digest after the prefix
		assert.Len(t, strings.TrimPrefix(keys[0], "auth:revoked:"), 64)
	})
}
