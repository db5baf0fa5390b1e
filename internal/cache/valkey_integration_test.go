//go:build integration

package cache_test

import (
	"testing"
	"time"

	"github.com/UnknownOlympus/pathway/internal/cache"
	"github.com/UnknownOlympus/pathway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestValkeyCache_Integration(t *testing.T) {
	ctx := t.Context()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "valkey/valkey:8-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	valkeyCache, err := cache.NewValkeyCache(addr, time.Minute)
	require.NoError(t, err)
	defer valkeyCache.Close()

	require.NoError(t, valkeyCache.Ping(ctx))

	key := cache.Key("google", "driving", "Kyiv", "Lviv")

	t.Run("miss", func(t *testing.T) {
		route, err := valkeyCache.Get(ctx, key)

		require.Nil(t, route)
		require.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("set then get", func(t *testing.T) {
		want := &models.Route{Polyline: "_p~iF~ps|U_ulLnnqC_mqNvxq`@", DistanceMeters: 540000}

		require.NoError(t, valkeyCache.Set(ctx, key, want))

		got, err := valkeyCache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}
