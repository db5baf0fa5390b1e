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
	"strings"
	"time"

	"github.com/UnknownOlympus/pathway/internal/models"
	"golang.org/x/time/rate"
)

// NominatimBaseURL is the public Nominatim search endpoint.
const NominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// nominatimUserAgent must identify the application per the Nominatim usage policy:
// https://operations.osmfoundation.org/policies/nominatim/
const nominatimUserAgent = "Pathway-Routing-Service/1.0 (https://github.com/UnknownOlympus/pathway)"

// AddressResolver turns a free-form address into coordinates.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) (models.Coordinates, error)
}

// NominatimResolver implements AddressResolver using OpenStreetMap's Nominatim API.
// The public instance allows 1 request per second.
type NominatimResolver struct {
	client  HTTPClient
	baseURL string
	log     *slog.Logger
	limiter *rate.Limiter
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Common errors for Nominatim resolver.
var (
	ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
)

// NewNominatimResolver creates a resolver limited to one request per second.
func NewNominatimResolver(baseURL string, log *slog.Logger) *NominatimResolver {
	const timeout = 10

	return NewNominatimResolverWithClient(
		&http.Client{Timeout: timeout * time.Second},
		baseURL,
		rate.NewLimiter(rate.Every(time.Second), 1),
		log,
	)
}

// NewNominatimResolverWithClient allows injecting custom HTTP client and limiter.
func NewNominatimResolverWithClient(
	client HTTPClient,
	baseURL string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *NominatimResolver {
	if baseURL == "" {
		baseURL = NominatimBaseURL
	}

	return &NominatimResolver{
		client:  client,
		baseURL: baseURL,
		log:     log,
		limiter: limiter,
	}
}

// Resolve looks the address up, dropping trailing comma-separated components (house number,
// then street) when the more specific form finds nothing.
func (nr *NominatimResolver) Resolve(ctx context.Context, address string) (models.Coordinates, error) {
	variations := addressFallbacks(address)

	for idx, variation := range variations {
		coords, err := nr.search(ctx, variation)
		if err == nil {
			if idx > 0 {
				nr.log.InfoContext(ctx, "Resolved using fallback address",
					"original", address,
					"fallback", variation,
					"fallback_level", idx)
			}
			return coords, nil
		}

		if !errors.Is(err, ErrNominatimEmptyResponse) {
			return models.Coordinates{}, err
		}

		nr.log.DebugContext(ctx, "Address variation returned no results, trying fallback",
			"variation", variation,
			"fallback_level", idx)
	}

	nr.log.WarnContext(ctx, "All address fallbacks exhausted", "address", address, "variations_tried", len(variations))

	return models.Coordinates{}, ErrNominatimEmptyResponse
}

// addressFallbacks returns the address followed by progressively shorter unique variations.
func addressFallbacks(address string) []string {
	if address == "" {
		return []string{""}
	}

	seen := make(map[string]bool)
	variations := []string{}
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variations = append(variations, v)
		}
	}

	add(address)

	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) > 1 {
		add(strings.Join(parts[:len(parts)-1], ", "))

		const minParts = 2
		if len(parts) > minParts {
			add(strings.Join(parts[:len(parts)-2], ", "))
		}

		add(parts[0])
	}

	return variations
}

func (nr *NominatimResolver) search(ctx context.Context, address string) (models.Coordinates, error) {
	if err := nr.limiter.Wait(ctx); err != nil {
		return models.Coordinates{}, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL, err := url.Parse(nr.baseURL)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := nr.client.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		nr.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return models.Coordinates{}, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResult
	if err = json.Unmarshal(body, &results); err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinates{}, ErrNominatimEmptyResponse
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, results[0].Lat)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, results[0].Lon)
	}

	coords := models.Coordinates{Latitude: lat, Longitude: lng}
	if err = coords.Validate(); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrNominatimInvalidCoords, err)
	}

	nr.log.DebugContext(ctx, "Nominatim resolved address", "address", address, "coordinates", coords.String())

	return coords, nil
}
