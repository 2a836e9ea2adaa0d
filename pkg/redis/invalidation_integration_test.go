//go:build integration

package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

func TestInvalidationFanOut(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	publisher := NewFromClient(redis.NewClient(opts), "forkx-test", zap.NewNop())
	listener := NewFromClient(redis.NewClient(opts), "forkx-test", zap.NewNop())
	defer publisher.Close()
	defer listener.Close()

	require.NoError(t, listener.Health(ctx))

	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var received atomic.Int32
	done := make(chan error, 1)
	go func() { done <- listener.ListenInvalidations(listenCtx, func() { received.Add(1) }) }()

	// The listener subscribes asynchronously; publish until it hears one.
	require.Eventually(t, func() bool {
		publisher.PublishInvalidation(ctx)
		return received.Load() > 0
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}
