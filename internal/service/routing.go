package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/pathway/internal/cache"
	"github.com/UnknownOlympus/pathway/internal/geometry"
	"github.com/UnknownOlympus/pathway/internal/metrics"
	"github.com/UnknownOlympus/pathway/internal/models"
	"github.com/UnknownOlympus/pathway/internal/polyline"
	"github.com/UnknownOlympus/pathway/internal/repository"
	"github.com/UnknownOlympus/pathway/internal/routing"
)

// RoutingService provides methods for tracing routes,
// including logging, repository access, provider integration,
// caching, metrics tracking, and worker management.
type RoutingService struct {
	log          *slog.Logger         // Logger for logging service activities
	repo         repository.Interface // Interface for data repository access
	provider     routing.Provider     // Routing provider for external routing services
	providerName string               // Name of the provider for metrics labeling and cache keys
	travelMode   string               // Travel mode requested from the provider, part of cache keys
	cache        cache.Cache          // Cache of previously traced routes
	metrics      *metrics.Metrics     // Metrics for tracking service performance
	numWorkers   int                  // Number of concurrent workers for processing
	pollInterval time.Duration        // Interval for polling new tasks
}

const defaultTravelMode = "driving"

// Options groups the tunables of RoutingService.
type Options struct {
	ProviderName string
	TravelMode   string // Empty means driving.
	Workers      int
	PollInterval time.Duration
}

// NewRoutingService creates a new instance of RoutingService.
// A nil cache disables caching.
func NewRoutingService(
	log *slog.Logger,
	repo repository.Interface,
	provider routing.Provider,
	routeCache cache.Cache,
	metrics *metrics.Metrics,
	opts Options,
) *RoutingService {
	if routeCache == nil {
		routeCache = cache.Noop{}
	}
	if opts.TravelMode == "" {
		opts.TravelMode = defaultTravelMode
	}

	return &RoutingService{
		log:          log,
		repo:         repo,
		provider:     provider,
		providerName: opts.ProviderName,
		travelMode:   opts.TravelMode,
		cache:        routeCache,
		metrics:      metrics,
		numWorkers:   opts.Workers,
		pollInterval: opts.PollInterval,
	}
}

// Run starts the routing service, which periodically polls for new tasks to trace.
// It listens for a cancellation signal from the context to gracefully stop the service.
func (rs *RoutingService) Run(ctx context.Context) {
	ticker := time.NewTicker(rs.pollInterval)
	defer ticker.Stop()

	rs.log.InfoContext(ctx, "Routing service started...")

	for {
		select {
		case <-ctx.Done():
			rs.log.InfoContext(ctx, "Routing service stopped.")
			return
		case <-ticker.C:
			rs.log.InfoContext(ctx, "Polling for new tasks to route...")
			rs.processTasks(ctx)
		}
	}
}

// processTasks fetches pending tasks from the repository, starts a worker pool to process them,
// and waits for all workers to finish.
func (rs *RoutingService) processTasks(ctx context.Context) {
	taskLimit := 100
	tasks, err := rs.repo.FetchTasksForRouting(ctx, taskLimit)
	if err != nil {
		rs.log.ErrorContext(ctx, "Failed to fetch tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		rs.log.InfoContext(ctx, "No tasks to process.")
		return
	}

	rs.log.InfoContext(
		ctx,
		"Found tasks to process. Starting worker pool.",
		"jobs",
		len(tasks),
		"num_workers",
		rs.numWorkers,
	)

	jobs := make(chan models.RouteTask, len(tasks))
	var wgr sync.WaitGroup

	for i := 1; i <= rs.numWorkers; i++ {
		wgr.Add(1)
		go rs.worker(ctx, i, &wgr, jobs)
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)

	wgr.Wait()
	rs.log.InfoContext(ctx, "Processing batch finished")
}

// worker processes tasks from the jobs channel until it is closed.
func (rs *RoutingService) worker(ctx context.Context, idx int, wg *sync.WaitGroup, jobs <-chan models.RouteTask) {
	defer wg.Done()
	for task := range jobs {
		rs.metrics.ActiveWorkers.Inc()
		rs.log.DebugContext(ctx, "Processing task", "worker", idx, "task", task.ID)

		route, err := rs.trace(ctx, task)
		if err != nil {
			rs.log.ErrorContext(ctx, "Failed to route", "worker", idx, "task", task.ID, "error", err)
			rs.metrics.TaskProcessed.WithLabelValues("failure").Inc()

			if err = rs.repo.IncrementFailureCount(ctx, task.ID, err.Error()); err != nil {
				rs.log.ErrorContext(
					ctx,
					"Could not update failure count for task",
					"worker", idx,
					"task", task.ID,
					"error", err,
				)
			}
			rs.metrics.ActiveWorkers.Dec()
			continue
		}

		rs.metrics.TaskProcessed.WithLabelValues("success").Inc()
		rs.metrics.RoutePoints.Observe(float64(len(route.Path)))

		if err = rs.repo.SaveRoute(ctx, task.ID, *route); err != nil {
			rs.log.ErrorContext(
				ctx,
				"Failed to save route for task",
				"worker", idx,
				"task", task.ID,
				"error", err,
			)
		} else {
			rs.log.DebugContext(ctx, "Worker successfully processed the task",
				"worker", idx, "task", task.ID, "points", len(route.Path))
		}

		rs.metrics.ActiveWorkers.Dec()
	}
}

// trace returns the route of a task, from the cache when possible. The polyline is decoded to
// validate it and re-encoded so that stored polylines are in canonical form.
func (rs *RoutingService) trace(ctx context.Context, task models.RouteTask) (*models.Route, error) {
	key := cache.Key(rs.providerName, rs.travelMode, task.Origin, task.Destination)

	raw, err := rs.cache.Get(ctx, key)
	fromCache := err == nil && raw != nil
	switch {
	case fromCache:
		rs.metrics.CacheLookups.WithLabelValues("hit").Inc()
	case err == nil, errors.Is(err, cache.ErrCacheMiss):
		rs.metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		rs.metrics.CacheLookups.WithLabelValues("error").Inc()
		rs.log.WarnContext(ctx, "Route cache lookup failed", "task", task.ID, "error", err)
	}

	if !fromCache {
		startTime := time.Now()
		raw, err = rs.provider.Route(ctx, task.Origin, task.Destination)
		duration := time.Since(startTime).Seconds()
		rs.metrics.RequestSeconds.WithLabelValues(rs.providerName).Observe(duration)

		if err != nil {
			rs.metrics.APIErrors.Inc()
			return nil, err
		}
		if raw == nil {
			return nil, routing.ErrEmptyResponse
		}
	}

	path, err := polyline.Decode(raw.Polyline)
	if err != nil {
		return nil, fmt.Errorf("provider returned an unusable polyline: %w", err)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("provider returned an empty polyline: %w", routing.ErrEmptyResponse)
	}

	canonical, err := polyline.Encode(path)
	if err != nil {
		return nil, fmt.Errorf("provider returned an unusable polyline: %w", err)
	}

	route := &models.Route{
		Polyline:       canonical,
		Path:           path,
		DistanceMeters: raw.DistanceMeters,
	}
	if route.DistanceMeters <= 0 {
		route.DistanceMeters = geometry.Length(path)
	}

	if !fromCache {
		if err = rs.cache.Set(ctx, key, route); err != nil {
			rs.log.WarnContext(ctx, "Failed to cache route", "task", task.ID, "error", err)
		}
	}

	return route, nil
}
