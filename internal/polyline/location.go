package polyline

import (
	"fmt"
	"strings"

	"github.com/UnknownOlympus/pathway/internal/models"
)

const (
	encPrefix         = "enc:"
	encSuffix         = ":"
	locationSeparator = "|"
)

// FormatLocation renders a path as an "enc:<polyline>:" location, the form accepted by the
// directions, distance matrix and elevation endpoints in place of a list of points.
func FormatLocation(path models.Path) (string, error) {
	encoded, err := Encode(path)
	if err != nil {
		return "", err
	}

	return encPrefix + encoded + encSuffix, nil
}

// ParseLocations parses a "|"-separated list of locations into a single path. Each location is
// either an "enc:<polyline>:" token or a "lat,lng" literal. The separator may itself occur inside
// an encoded polyline, so tokens are scanned rather than split. Empty locations, including one
// after a trailing separator, are rejected.
func ParseLocations(value string) (models.Path, error) {
	// Both token forms end in something other than the separator.
	if strings.HasSuffix(value, locationSeparator) {
		return nil, fmt.Errorf("%w: empty location after trailing %q", models.ErrInvalidLatLng, locationSeparator)
	}

	path := models.Path{}

	for rest := value; rest != ""; {
		var token string
		if strings.HasPrefix(rest, encPrefix) {
			body := rest[len(encPrefix):]
			end := strings.Index(body, encSuffix)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated %q location", ErrMalformedInput, encPrefix)
			}

			points, err := Decode(body[:end])
			if err != nil {
				return nil, err
			}
			path = append(path, points...)

			rest = body[end+len(encSuffix):]
			if rest != "" && !strings.HasPrefix(rest, locationSeparator) {
				return nil, fmt.Errorf("%w: unexpected %q after encoded location", ErrMalformedInput, rest)
			}
			rest = strings.TrimPrefix(rest, locationSeparator)
			continue
		}

		token, rest, _ = strings.Cut(rest, locationSeparator)
		point, err := models.ParseLatLng(token)
		if err != nil {
			return nil, err
		}
		path = append(path, point)
	}

	return path, nil
}
