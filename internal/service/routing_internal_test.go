package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/UnknownOlympus/pathway/internal/cache"
	"github.com/UnknownOlympus/pathway/internal/metrics"
	"github.com/UnknownOlympus/pathway/internal/models"
	"github.com/UnknownOlympus/pathway/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const referenceEncoded = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

var referencePath = models.Path{
	{Latitude: 38.5, Longitude: -120.2},
	{Latitude: 40.7, Longitude: -120.95},
	{Latitude: 43.252, Longitude: -126.453},
}

type fixture struct {
	repo     *mocks.Interface
	provider *mocks.Provider
	cache    *mocks.Cache
	metrics  *metrics.Metrics
	service  *RoutingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:     mocks.NewInterface(t),
		provider: mocks.NewProvider(t),
		cache:    mocks.NewCache(t),
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	f.service = NewRoutingService(logger, f.repo, f.provider, f.cache, f.metrics, Options{
		ProviderName: "google",
		Workers:      2,
		PollInterval: time.Second,
	})

	return f
}

func TestProcessTasks(t *testing.T) {
	ctx := t.Context()
	task := models.RouteTask{ID: 1, Origin: "Kyiv", Destination: "Lviv"}
	key := cache.Key("google", "driving", "Kyiv", "Lviv")
	wantRoute := models.Route{Polyline: referenceEncoded, Path: referencePath, DistanceMeters: 1500}

	t.Run("successfull processing", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").
			Return(&models.Route{Polyline: referenceEncoded, DistanceMeters: 1500}, nil).Once()
		f.cache.On("Set", ctx, key, &wantRoute).Return(nil).Once()
		f.repo.On("SaveRoute", ctx, 1, wantRoute).Return(nil).Once()

		f.service.processTasks(ctx)

		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.TaskProcessed.WithLabelValues("success")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("miss")), 0)
	})

	t.Run("route served from cache", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).
			Return(&models.Route{Polyline: referenceEncoded, DistanceMeters: 1500}, nil).Once()
		f.repo.On("SaveRoute", ctx, 1, wantRoute).Return(nil).Once()

		f.service.processTasks(ctx)

		f.provider.AssertNotCalled(t, "Route", mock.Anything, mock.Anything, mock.Anything)
		f.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("hit")), 0)
	})

	t.Run("fetch tasks return error", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return(nil, assert.AnError).Once()

		f.service.processTasks(ctx)
	})

	t.Run("fetch tasks return empty list", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{}, nil).Once()

		f.service.processTasks(ctx)
	})

	t.Run("routing provider returns error", func(t *testing.T) {
		f := newFixture(t)
		routeErr := errors.New("routing failed")

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").Return(nil, routeErr).Once()
		f.repo.On("IncrementFailureCount", ctx, 1, routeErr.Error()).Return(nil).Once()

		f.service.processTasks(ctx)

		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.APIErrors), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.TaskProcessed.WithLabelValues("failure")), 0)
	})

	t.Run("provider returns nothing", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").Return(nil, nil).Once()
		f.repo.On("IncrementFailureCount", ctx, 1, mock.AnythingOfType("string")).Return(nil).Once()

		f.service.processTasks(ctx)
	})

	t.Run("provider returns malformed polyline", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").Return(&models.Route{Polyline: "_"}, nil).Once()
		f.repo.On("IncrementFailureCount", ctx, 1, mock.MatchedBy(func(msg string) bool {
			return strings.Contains(msg, "unusable polyline") && strings.Contains(msg, "malformed encoded polyline")
		})).Return(nil).Once()

		f.service.processTasks(ctx)
	})

	t.Run("provider returns empty polyline", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").Return(&models.Route{}, nil).Once()
		f.repo.On("IncrementFailureCount", ctx, 1, mock.MatchedBy(func(msg string) bool {
			return strings.Contains(msg, "empty polyline")
		})).Return(nil).Once()

		f.service.processTasks(ctx)
	})

	t.Run("distance computed when provider reports none", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").Return(&models.Route{Polyline: referenceEncoded}, nil).Once()
		f.cache.On("Set", ctx, key, mock.Anything).Return(nil).Once()
		f.repo.On("SaveRoute", ctx, 1, mock.MatchedBy(func(route models.Route) bool {
			return route.Polyline == referenceEncoded && route.DistanceMeters > 500_000
		})).Return(nil).Once()

		f.service.processTasks(ctx)
	})

	t.Run("cache failures do not fail the task", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, assert.AnError).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").
			Return(&models.Route{Polyline: referenceEncoded, DistanceMeters: 1500}, nil).Once()
		f.cache.On("Set", ctx, key, &wantRoute).Return(assert.AnError).Once()
		f.repo.On("SaveRoute", ctx, 1, wantRoute).Return(nil).Once()

		f.service.processTasks(ctx)

		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("error")), 0)
	})

	t.Run("error to increment failure count", func(t *testing.T) {
		f := newFixture(t)
		routeErr := errors.New("routing failed")

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").Return(nil, routeErr).Once()
		f.repo.On("IncrementFailureCount", ctx, 1, routeErr.Error()).Return(assert.AnError).Once()

		f.service.processTasks(ctx)
	})

	t.Run("error to save route", func(t *testing.T) {
		f := newFixture(t)

		f.repo.On("FetchTasksForRouting", ctx, 100).Return([]models.RouteTask{task}, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Once()
		f.provider.On("Route", ctx, "Kyiv", "Lviv").
			Return(&models.Route{Polyline: referenceEncoded, DistanceMeters: 1500}, nil).Once()
		f.cache.On("Set", ctx, key, &wantRoute).Return(nil).Once()
		f.repo.On("SaveRoute", ctx, 1, wantRoute).Return(assert.AnError).Once()

		f.service.processTasks(ctx)
	})

	t.Run("many tasks across workers", func(t *testing.T) {
		f := newFixture(t)
		tasks := make([]models.RouteTask, 10)
		for i := range tasks {
			tasks[i] = models.RouteTask{ID: i + 1, Origin: "Kyiv", Destination: "Lviv"}
		}

		f.repo.On("FetchTasksForRouting", ctx, 100).Return(tasks, nil).Once()
		f.cache.On("Get", ctx, key).Return(nil, cache.ErrCacheMiss).Times(len(tasks))
		f.provider.On("Route", ctx, "Kyiv", "Lviv").
			Return(&models.Route{Polyline: referenceEncoded, DistanceMeters: 1500}, nil).Times(len(tasks))
		f.cache.On("Set", ctx, key, &wantRoute).Return(nil).Times(len(tasks))
		f.repo.On("SaveRoute", ctx, mock.AnythingOfType("int"), wantRoute).Return(nil).Times(len(tasks))

		f.service.processTasks(ctx)

		assert.InDelta(t, 10, testutil.ToFloat64(f.metrics.TaskProcessed.WithLabelValues("success")), 0)
		assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.ActiveWorkers), 0)
	})
}

func TestNewRoutingService_NilCache(t *testing.T) {
	ctx := t.Context()
	repo := mocks.NewInterface(t)
	provider := mocks.NewProvider(t)
	svc := NewRoutingService(slog.Default(), repo, provider, nil, metrics.NewMetrics(prometheus.NewRegistry()),
		Options{ProviderName: "osrm", Workers: 1, PollInterval: time.Second})

	provider.On("Route", ctx, "1,2", "3,4").Return(&models.Route{Polyline: "??"}, nil).Once()

	route, err := svc.trace(ctx, models.RouteTask{ID: 7, Origin: "1,2", Destination: "3,4"})

	require.NoError(t, err)
	assert.Equal(t, models.Path{{}}, route.Path)
	assert.Zero(t, route.DistanceMeters)
}

func TestTrace_CacheKeyCarriesTravelMode(t *testing.T) {
	ctx := t.Context()
	repo := mocks.NewInterface(t)
	provider := mocks.NewProvider(t)
	routeCache := mocks.NewCache(t)
	svc := NewRoutingService(slog.Default(), repo, provider, routeCache, metrics.NewMetrics(prometheus.NewRegistry()),
		Options{ProviderName: "osrm", TravelMode: "walking", Workers: 1, PollInterval: time.Second})

	key := cache.Key("osrm", "walking", "1,2", "3,4")
	routeCache.On("Get", ctx, key).Return(&models.Route{Polyline: "??"}, nil).Once()

	_, err := svc.trace(ctx, models.RouteTask{ID: 7, Origin: "1,2", Destination: "3,4"})

	require.NoError(t, err)
	provider.AssertNotCalled(t, "Route", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, defaultTravelMode, newFixture(t).service.travelMode)
}

func TestRun(t *testing.T) {
	f := newFixture(t)

	t.Run("start context cancelled", func(t *testing.T) {
		tctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()

		f.service.Run(tctx)
	})
}
