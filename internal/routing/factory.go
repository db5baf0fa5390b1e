package routing

import (
	"errors"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"
)

// ProviderType represents the type of routing provider.
type ProviderType string

const (
	// ProviderTypeGoogle represents Google Maps Directions provider.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeOSRM represents an OSRM route service.
	ProviderTypeOSRM ProviderType = "osrm"
)

// ProviderConfig holds configuration for creating a routing provider.
type ProviderConfig struct {
	Type      ProviderType // Type of provider to create
	APIKey    string       // API key (used by Google provider)
	RateLimit int          // Rate limit for requests per second
	Mode      string       // Travel mode: driving, walking, bicycling
	BaseURL   string       // Base URL (used by OSRM provider)
	Geocoder  string       // Nominatim URL for address endpoints (used by OSRM provider, empty disables)
	Logger    *slog.Logger // Logger for the provider
}

// NewProvider creates a routing provider based on the provided configuration.
//
// Supported provider types:
// - "google": Google Maps Directions API (requires API key)
// - "osrm": OSRM route service (no API key, coordinates only)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	case ProviderTypeOSRM:
		return newOSRMProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newGoogleProvider creates a Google Maps routing provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	// Create Google Maps client with API key and rate limiting
	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	// Apply rate limiting if specified
	if config.RateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(config.RateLimit))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Mode, config.Logger), nil
}

// newOSRMProvider creates an OSRM routing provider.
func newOSRMProvider(config ProviderConfig) (Provider, error) {
	if config.RateLimit == 0 {
		config.RateLimit = 1
		config.Logger.Warn("Rate limit for OSRM API not set, set a default value", "value", config.RateLimit)
	}

	provider, err := NewOSRMProvider(config.BaseURL, config.Mode, config.RateLimit, config.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSRM provider: %w", err)
	}

	if config.Geocoder != "" {
		provider.WithResolver(NewNominatimResolver(config.Geocoder, config.Logger))
	}

	return provider, nil
}
