//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *RedisClient {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewRedisClient(RedisConfig{Addr: endpoint, Prefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisClientIntegration(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	t.Run("get set delete", func(t *testing.T) {
		_, err := client.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrCacheMiss)

		require.NoError(t, client.Set(ctx, StatsKey("u1"), []byte("v"), time.Minute))
		v, err := client.Get(ctx, StatsKey("u1"))
		require.NoError(t, err)
		assert.Equal(t, "v", string(v))

		require.NoError(t, client.DeleteByPrefix(ctx, "stats:"))
		_, err = client.Get(ctx, StatsKey("u1"))
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("lease", func(t *testing.T) {
		key := LeaseKey("n1")
		require.NoError(t, client.Hold(ctx, key, "run-a", time.Minute))
		assert.ErrorIs(t, client.Hold(ctx, key, "run-b", time.Minute), ErrLeaseHeld)
		require.NoError(t, client.Hold(ctx, key, "run-a", time.Minute))

		holder, err := client.Holder(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "run-a", holder)

		require.NoError(t, client.Release(ctx, key, "run-b"))
		holder, _ = client.Holder(ctx, key)
		assert.Equal(t, "run-a", holder)

		require.NoError(t, client.Release(ctx, key, "run-a"))
		holder, _ = client.Holder(ctx, key)
		assert.Empty(t, holder)
	})

	t.Run("lease expiry", func(t *testing.T) {
		key := LeaseKey("n2")
		require.NoError(t, client.Hold(ctx, key, "run-a", 100*time.Millisecond))
		assert.Eventually(t, func() bool {
			holder, err := client.Holder(ctx, key)
			return err == nil && holder == ""
		}, 2*time.Second, 50*time.Millisecond)
	})

	t.Run("pub sub", func(t *testing.T) {
		ch, unsubscribe, err := client.Subscribe(ctx, EventsChannel("n1"))
		require.NoError(t, err)
		defer unsubscribe()

		require.NoError(t, client.Publish(ctx, EventsChannel("n1"), []byte(`{"type":"page.completed"}`)))

		select {
		case msg := <-ch:
			assert.JSONEq(t, `{"type":"page.completed"}`, string(msg))
		case <-time.After(5 * time.Second):
			t.Fatal("no message received")
		}
	})
}
