package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/UnknownOlympus/pathway/internal/models"
	"golang.org/x/time/rate"
)

// OSRMBaseURL is the public OSRM demo server.
const OSRMBaseURL = "https://router.project-osrm.org"

// OSRMProvider implements the Provider interface using the OSRM route service.
// OSRM only accepts coordinates: endpoints are "lat,lng" literals, or addresses when a resolver
// is attached.
type OSRMProvider struct {
	client   HTTPClient      // HTTP client for making requests
	baseURL  string          // Base URL of the OSRM server
	profile  string          // Routing profile: driving, walking or cycling
	log      *slog.Logger    // Logger for logging operations
	limiter  *rate.Limiter   // Rate limiter
	resolver AddressResolver // Optional resolver for address endpoints
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Common errors for OSRM provider.
var (
	ErrOSRMEmptyResponse    = errors.New("osrm API returned empty response")
	ErrOSRMNoRoute          = errors.New("osrm API found no route")
	ErrOSRMNeedsCoordinates = errors.New("osrm provider needs lat,lng endpoints")
)

// osrmResponse is the part of the OSRM route response used here.
type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"` // Encoded polyline with 1e-5 precision
		Distance float64 `json:"distance"` // Meters
	} `json:"routes"`
}

// osrmProfiles maps Google travel modes to OSRM profiles.
var osrmProfiles = map[string]string{
	"":          "driving",
	"driving":   "driving",
	"walking":   "walking",
	"bicycling": "cycling",
	"cycling":   "cycling",
}

// NewOSRMProvider creates a new OSRM routing provider.
func NewOSRMProvider(baseURL, mode string, rateLimit int, log *slog.Logger) (*OSRMProvider, error) {
	const timeout = 10

	limiter := rate.NewLimiter(rate.Limit(rateLimit), rateLimit)

	return NewOSRMProviderWithClient(&http.Client{Timeout: timeout * time.Second}, baseURL, mode, limiter, log)
}

// NewOSRMProviderWithClient allows injecting custom HTTP client and limiter.
func NewOSRMProviderWithClient(
	client HTTPClient,
	baseURL string,
	mode string,
	limiter *rate.Limiter,
	log *slog.Logger,
) (*OSRMProvider, error) {
	profile, ok := osrmProfiles[mode]
	if !ok {
		return nil, fmt.Errorf("unsupported travel mode for OSRM: %s", mode)
	}
	if baseURL == "" {
		baseURL = OSRMBaseURL
	}

	return &OSRMProvider{
		client:  client,
		baseURL: baseURL,
		profile: profile,
		log:     log,
		limiter: limiter,
	}, nil
}

// WithResolver attaches a resolver used for endpoints that are not "lat,lng" literals.
func (op *OSRMProvider) WithResolver(resolver AddressResolver) *OSRMProvider {
	op.resolver = resolver
	return op
}

// Route requests the full-resolution route geometry between origin and destination.
func (op *OSRMProvider) Route(ctx context.Context, origin, destination string) (*models.Route, error) {
	from, err := op.endpoint(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	to, err := op.endpoint(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	// Rate limit
	if err = op.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	op.log.DebugContext(ctx, "Routing using OSRM", "origin", origin, "destination", destination)

	reqURL, err := url.Parse(op.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	reqURL = reqURL.JoinPath("route", "v1", op.profile, osrmPoint(from)+";"+osrmPoint(to))

	query := reqURL.Query()
	query.Set("overview", "full")
	query.Set("geometries", "polyline")
	reqURL.RawQuery = query.Encode()

	op.log.DebugContext(ctx, "OSRM request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := op.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute routing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result osrmResponse
	if resp.StatusCode != http.StatusOK {
		// OSRM reports "NoRoute" and friends with a 400 and a JSON body.
		if json.Unmarshal(body, &result) == nil && result.Code == "NoRoute" {
			return nil, fmt.Errorf("%w: %s", ErrOSRMNoRoute, result.Message)
		}
		op.log.ErrorContext(ctx, "OSRM API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("osrm API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode osrm response: %w", err)
	}

	if result.Code != "Ok" {
		return nil, fmt.Errorf("%w: %s %s", ErrOSRMNoRoute, result.Code, result.Message)
	}
	if len(result.Routes) == 0 {
		return nil, ErrOSRMEmptyResponse
	}

	op.log.DebugContext(ctx, "OSRM found route", "distance", result.Routes[0].Distance)

	return &models.Route{
		Polyline:       result.Routes[0].Geometry,
		DistanceMeters: result.Routes[0].Distance,
	}, nil
}

func (op *OSRMProvider) endpoint(ctx context.Context, value string) (models.Coordinates, error) {
	point, err := models.ParseLatLng(value)
	if err == nil {
		return point, nil
	}
	if op.resolver == nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrOSRMNeedsCoordinates, err)
	}

	point, err = op.resolver.Resolve(ctx, value)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to resolve address %q: %w", value, err)
	}

	return point, nil
}

// osrmPoint formats a point in the lng,lat order OSRM expects.
func osrmPoint(c models.Coordinates) string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}
