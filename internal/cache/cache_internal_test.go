package cache

import (
	"testing"

	"github.com/UnknownOlympus/pathway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, `pathway:route:google:driving:"Kyiv":"Lviv"`, Key("google", "driving", "Kyiv", "Lviv"))
	// Quoting keeps endpoints containing the separator apart.
	assert.NotEqual(t, Key("osrm", "driving", "a:b", "c"), Key("osrm", "driving", "a", "b:c"))
	assert.NotEqual(t, Key("osrm", "driving", "1,2", "3,4"), Key("osrm", "walking", "1,2", "3,4"))
}

func TestRouteEncoding(t *testing.T) {
	t.Run("success - round trip", func(t *testing.T) {
		route := &models.Route{Polyline: "_p~iF~ps|U_ulLnnqC_mqNvxq`@", DistanceMeters: 1234.5}

		value := marshalRoute(route)
		assert.Equal(t, "1234.5;_p~iF~ps|U_ulLnnqC_mqNvxq`@", value)

		got, err := unmarshalRoute(value)
		require.NoError(t, err)
		assert.Equal(t, route, got)
	})

	t.Run("success - empty polyline", func(t *testing.T) {
		got, err := unmarshalRoute("0;")

		require.NoError(t, err)
		assert.Equal(t, &models.Route{}, got)
	})

	t.Run("error - no separator", func(t *testing.T) {
		got, err := unmarshalRoute("_p~iF")

		require.Nil(t, got)
		require.ErrorContains(t, err, "has no separator")
	})

	t.Run("error - bad distance", func(t *testing.T) {
		got, err := unmarshalRoute("far;??")

		require.Nil(t, got)
		require.ErrorContains(t, err, "bad distance")
	})
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}

	require.NoError(t, c.Set(t.Context(), "k", &models.Route{Polyline: "??"}))

	route, err := c.Get(t.Context(), "k")
	require.Nil(t, route)
	require.ErrorIs(t, err, ErrCacheMiss)
}
