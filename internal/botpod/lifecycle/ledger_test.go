package lifecycle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/botpod/internal/botpod/core"
	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

func exerciseLedger(t *testing.T, l core.IntentLedger) {
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "p1", model.IntentWakeUp)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, l.Pending(ctx, "p1", model.IntentWakeUp))

	ok, err = l.Acquire(ctx, "p1", model.IntentWakeUp)
	require.NoError(t, err)
	assert.False(t, ok, "same kind must coalesce")

	ok, err = l.Acquire(ctx, "p1", model.IntentShutdown)
	require.NoError(t, err)
	assert.True(t, ok, "kinds are independent")

	ok, err = l.Acquire(ctx, "p2", model.IntentWakeUp)
	require.NoError(t, err)
	assert.True(t, ok, "pods are independent")

	l.Release(ctx, "p1", model.IntentWakeUp)
	assert.False(t, l.Pending(ctx, "p1", model.IntentWakeUp))
	assert.True(t, l.Pending(ctx, "p1", model.IntentShutdown))

	l.Release(ctx, "p1", model.IntentWakeUp)
	l.Release(ctx, "p1", model.IntentShutdown)
	l.Release(ctx, "p2", model.IntentWakeUp)
}

func TestMemoryLedger(t *testing.T) {
	exerciseLedger(t, NewMemoryLedger())
}

func TestRedisLedger(t *testing.T) {
	addr := os.Getenv("BOTPOD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOTPOD_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "botpod-test-" + time.Now().Format("150405.000000")
	exerciseLedger(t, NewRedisLedger(client, prefix, time.Minute))

	// A second replica sees the first one's intent.
	a := NewRedisLedger(client, prefix, time.Minute)
	b := NewRedisLedger(client, prefix, time.Minute)
	ok, err := a.Acquire(context.Background(), "p3", model.IntentShutdown)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.Acquire(context.Background(), "p3", model.IntentShutdown)
	require.NoError(t, err)
	assert.False(t, ok)

	// b never held the key, so its release leaves a's intent alone.
	b.Release(context.Background(), "p3", model.IntentShutdown)
	assert.True(t, b.Pending(context.Background(), "p3", model.IntentShutdown))
	a.Release(context.Background(), "p3", model.IntentShutdown)
	assert.False(t, b.Pending(context.Background(), "p3", model.IntentShutdown))
}
