package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidLatLng is returned when a value cannot be interpreted as a latitude/longitude pair.
var ErrInvalidLatLng = errors.New("invalid lat/lng value")

const (
	maxLatitude  = 90
	maxLongitude = 180
)

// Coordinates represents a geographical point defined by its latitude and longitude.
type Coordinates struct {
	Latitude  float64 // Latitude of the geographical point.
	Longitude float64 // Longitude of the geographical point.
}

// Path is an ordered sequence of points describing a polyline or route.
type Path []Coordinates

// ParseLatLng parses the comma-separated "lat,lng" form, e.g. "40.714728,-73.998672".
func ParseLatLng(value string) (Coordinates, error) {
	latRaw, lngRaw, found := strings.Cut(value, ",")
	if !found {
		return Coordinates{}, fmt.Errorf("%w: %q is not a lat,lng pair", ErrInvalidLatLng, value)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: bad latitude %q", ErrInvalidLatLng, latRaw)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: bad longitude %q", ErrInvalidLatLng, lngRaw)
	}
	if !isFinite(lat) || !isFinite(lng) {
		return Coordinates{}, fmt.Errorf("%w: %q has a non-finite value", ErrInvalidLatLng, value)
	}

	return Coordinates{Latitude: lat, Longitude: lng}, nil
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

// String returns the "lat,lng" form using the fewest digits that round-trip.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Validate reports whether the point lies within the valid latitude and longitude ranges.
func (c Coordinates) Validate() error {
	if !(c.Latitude >= -maxLatitude && c.Latitude <= maxLatitude) {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidLatLng, c.Latitude)
	}
	if !(c.Longitude >= -maxLongitude && c.Longitude <= maxLongitude) {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidLatLng, c.Longitude)
	}

	return nil
}

type latLngObject struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// MarshalJSON encodes the point as {"lat":..,"lng":..}.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}{Lat: c.Latitude, Lng: c.Longitude})
}

// UnmarshalJSON accepts every form the mapping APIs take for a location:
//   - a two-item array [lat, lng];
//   - a comma-separated string "lat,lng";
//   - an object with "lat" and "lng";
//   - an object with "latitude" and "longitude".
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidLatLng)
	}

	switch data[0] {
	case '[':
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLatLng, err)
		}
		const pairLength = 2
		if len(pair) != pairLength {
			return fmt.Errorf("%w: array must have exactly 2 items, got %d", ErrInvalidLatLng, len(pair))
		}
		*c = Coordinates{Latitude: pair[0], Longitude: pair[1]}
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLatLng, err)
		}
		parsed, err := ParseLatLng(raw)
		if err != nil {
			return err
		}
		*c = parsed
	case '{':
		var obj latLngObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidLatLng, err)
		}
		switch {
		case obj.Lat != nil && obj.Lng != nil:
			*c = Coordinates{Latitude: *obj.Lat, Longitude: *obj.Lng}
		case obj.Latitude != nil && obj.Longitude != nil:
			*c = Coordinates{Latitude: *obj.Latitude, Longitude: *obj.Longitude}
		default:
			return fmt.Errorf("%w: object needs lat/lng or latitude/longitude", ErrInvalidLatLng)
		}
	default:
		return fmt.Errorf("%w: unsupported JSON value %s", ErrInvalidLatLng, string(data))
	}

	return nil
}
