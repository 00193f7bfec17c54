package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore()
	now := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("Revoke", func(t *testing.T) {
		require.NoError(t, store.Revoke(ctx, "jti", time.Minute))
		revoked, err := store.IsRevoked(ctx, "jti")
		require.NoError(t, err)
		assert.True(t, revoked)

		now = now.Add(2 * time.Minute)
		revoked, err = store.IsRevoked(ctx, "jti")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, _ := store.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = store.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = store.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.False(t, allowed)

		allowed, _ = store.CheckRateLimit(ctx, "other", 2, time.Second)
		assert.True(t, allowed)

		now = now.Add(time.Second + time.Millisecond)
		allowed, _ = store.CheckRateLimit(ctx, "k", 2, time.Second)
		assert.True(t, allowed)
	})

	t.Run("Sweep", func(t *testing.T) {
		require.NoError(t, store.Revoke(ctx, "old", time.Second))
		now = now.Add(time.Hour)
		store.Sweep()
		assert.Empty(t, store.revoked)
		assert.Empty(t, store.rateLimits)
	})
}
