package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/pathway/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps Directions service.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	mode   maps.Mode       // mode is the travel mode requested from the API
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// ErrEmptyResponse is returned when the Google Maps API responds without any route.
var ErrEmptyResponse = errors.New("get empty response from Google Maps API")

// NewGoogleProvider initializes a new GoogleProvider with the given client, travel mode and logger.
// An empty mode falls back to driving.
func NewGoogleProvider(client GoogleAPIClient, mode string, log *slog.Logger) *GoogleProvider {
	if mode == "" {
		mode = string(maps.TravelModeDriving)
	}

	return &GoogleProvider{client: client, mode: maps.Mode(mode), log: log}
}

// Route asks the Google Maps Directions API for a route between origin and destination and
// returns its overview polyline together with the total distance of all legs.
// If the API fails or returns no routes, it returns an appropriate error.
func (gp *GoogleProvider) Route(ctx context.Context, origin, destination string) (*models.Route, error) {
	gp.log.DebugContext(ctx, "Routing using Google Maps", "origin", origin, "destination", destination)

	req := maps.DirectionsRequest{Origin: origin, Destination: destination, Mode: gp.mode}
	routes, _, err := gp.client.Directions(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to request directions: %w", err)
	}

	if len(routes) == 0 {
		return nil, ErrEmptyResponse
	}

	route := routes[0]
	var meters int
	for _, leg := range route.Legs {
		if leg != nil {
			meters += leg.Distance.Meters
		}
	}

	return &models.Route{
		Polyline:       route.OverviewPolyline.Points,
		DistanceMeters: float64(meters),
	}, nil
}
