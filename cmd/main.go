package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/UnknownOlympus/pathway/internal/cache"
	"github.com/UnknownOlympus/pathway/internal/config"
	"github.com/UnknownOlympus/pathway/internal/metrics"
	"github.com/UnknownOlympus/pathway/internal/repository"
	"github.com/UnknownOlympus/pathway/internal/routing"
	"github.com/UnknownOlympus/pathway/internal/server"
	"github.com/UnknownOlympus/pathway/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Initialize the database connection.
	dtb, err := repository.NewDatabase(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer dtb.Close()

	if err = repository.EnsureSchema(ctx, dtb); err != nil {
		log.Fatalf("Failed to prepare DB schema: %v", err)
	}

	// Create a new repository instance using the database connection.
	repo := repository.NewRepository(dtb, logger)

	// The provider budget is shared by all workers.
	providerConfig := routing.ProviderConfig{
		Type:      routing.ProviderType(cfg.Provider.Type),
		APIKey:    cfg.Provider.APIKey,
		RateLimit: max(cfg.Provider.RateLimit/cfg.Workers, 1),
		Mode:      cfg.Provider.Mode,
		BaseURL:   cfg.Provider.BaseURL,
		Geocoder:  cfg.Provider.Geocoder,
		Logger:    logger,
	}

	routeProvider, err := routing.NewProvider(providerConfig)
	if err != nil {
		log.Fatalf("Failed to create routing provider: %v", err)
	}

	logger.InfoContext(ctx, "Routing provider initialized", "type", cfg.Provider.Type, "mode", cfg.Provider.Mode)

	var routeCache cache.Cache
	if cfg.Cache.Addr != "" {
		valkeyCache, cacheErr := cache.NewValkeyCache(cfg.Cache.Addr, cfg.Cache.TTL)
		if cacheErr != nil {
			log.Fatalf("Failed to connect to route cache: %v", cacheErr)
		}
		defer valkeyCache.Close()

		if cacheErr = valkeyCache.Ping(ctx); cacheErr != nil {
			log.Fatalf("Route cache is not reachable: %v", cacheErr)
		}

		routeCache = valkeyCache
		logger.InfoContext(ctx, "Route cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
	}

	// Init a new routing service using the route provider.
	routeService := service.NewRoutingService(logger, repo, routeProvider, routeCache, appMetrics, service.Options{
		ProviderName: cfg.Provider.Type,
		TravelMode:   cfg.Provider.Mode,
		Workers:      cfg.Workers,
		PollInterval: cfg.Interval,
	})

	httpServer := server.New(logger, reg, dtb, appMetrics, cfg.Port)

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	var wg sync.WaitGroup
	wg.Add(2) //nolint:mnd

	go func() {
		defer wg.Done()
		if serveErr := httpServer.Run(ctx); serveErr != nil {
			logger.ErrorContext(ctx, "Http server failed", "error", serveErr)
			stop()
		}
	}()

	go func() {
		defer wg.Done()
		routeService.Run(ctx)
	}()

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	wg.Wait()

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
