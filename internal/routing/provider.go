package routing

import (
	"context"

	"github.com/UnknownOlympus/pathway/internal/models"
)

// Provider is an interface that defines a method for tracing a route between two endpoints.
// The Route method takes a context, an origin and a destination (addresses or "lat,lng"
// literals) and returns the route with its encoded overview polyline.
type Provider interface {
	Route(ctx context.Context, origin, destination string) (*models.Route, error)
}
