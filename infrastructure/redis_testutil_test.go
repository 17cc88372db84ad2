package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupTestRedis starts a redis test container and returns a connected
// client. The container and client are torn down with the test.
func setupTestRedis(t *testing.T) *redis.Client {
	ctx := context.Background()

	labels := map[string]string{
		"test":      "pumprug-infrastructure",
		"test-name": t.Name(),
		"timestamp": time.Now().Format("20060102-150405"),
		"cleanup":   "auto",
	}

	container, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithLabels(labels),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate test container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() {
		client.Close()
	})

	require.NoError(t, client.Ping(ctx).Err())
	return client
}
