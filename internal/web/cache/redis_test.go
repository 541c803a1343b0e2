package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/invweb/internal/web/cache"
)

// setupRedis starts a throwaway Redis and returns its URL.
func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}

	ctx := context.Background()
	c, err := cache.NewRedis(ctx, setupRedis(t), "invweb:test:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Get(ctx, "catalog")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, c.Set(ctx, "catalog", []byte(`[{"id":1}]`), time.Minute))
	got, err := c.Get(ctx, "catalog")
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":1}]`, string(got))

	require.NoError(t, c.Delete(ctx, "catalog"))
	_, err = c.Get(ctx, "catalog")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, c.Ping(ctx))
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := cache.NewRedis(context.Background(), "not a url", "")
	require.Error(t, err)
}
