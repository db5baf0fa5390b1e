// Package cache keeps recently traced routes so that repeated endpoint pairs do not cost a
// provider request. Only the encoded polyline and distance are stored; callers decode on a hit.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/pathway/internal/models"
)

// ErrCacheMiss is returned by Get when no route is stored under the key.
var ErrCacheMiss = errors.New("route not found in cache")

// Cache stores routes by key.
type Cache interface {
	Get(ctx context.Context, key string) (*models.Route, error)
	Set(ctx context.Context, key string, route *models.Route) error
}

const keyPrefix = "pathway:route:"

// Key builds the cache key for a provider, a travel mode and an endpoint pair.
func Key(provider, mode, origin, destination string) string {
	return keyPrefix + provider + ":" + mode + ":" + strconv.Quote(origin) + ":" + strconv.Quote(destination)
}

// Noop is a Cache that never stores anything.
type Noop struct{}

// Get always reports a miss.
func (Noop) Get(context.Context, string) (*models.Route, error) { return nil, ErrCacheMiss }

// Set discards the route.
func (Noop) Set(context.Context, string, *models.Route) error { return nil }

// marshalRoute renders a route as "<meters>;<polyline>". ';' never occurs in a polyline.
func marshalRoute(route *models.Route) string {
	return strconv.FormatFloat(route.DistanceMeters, 'f', -1, 64) + ";" + route.Polyline
}

func unmarshalRoute(value string) (*models.Route, error) {
	rawMeters, encoded, found := strings.Cut(value, ";")
	if !found {
		return nil, fmt.Errorf("cached route %q has no separator", value)
	}

	meters, err := strconv.ParseFloat(rawMeters, 64)
	if err != nil {
		return nil, fmt.Errorf("cached route has bad distance: %w", err)
	}

	return &models.Route{Polyline: encoded, DistanceMeters: meters}, nil
}
