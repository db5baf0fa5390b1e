// Package geometry adapts decoded paths to orb geometries for measuring and rendering.
package geometry

import (
	"github.com/UnknownOlympus/pathway/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// LineString converts a path into an orb line string. Orb points are ordered lng,lat.
func LineString(path models.Path) orb.LineString {
	line := make(orb.LineString, len(path))
	for i, point := range path {
		line[i] = orb.Point{point.Longitude, point.Latitude}
	}

	return line
}

// Length returns the great-circle length of the path in meters.
func Length(path models.Path) float64 {
	const minPoints = 2
	if len(path) < minPoints {
		return 0
	}

	return geo.LengthHaversine(LineString(path))
}

// Bounds returns the bounding box of the path. The second value is false for an empty path.
func Bounds(path models.Path) (models.Bounds, bool) {
	if len(path) == 0 {
		return models.Bounds{}, false
	}

	bound := LineString(path).Bound()

	return models.Bounds{
		South: bound.Bottom(),
		West:  bound.Left(),
		North: bound.Top(),
		East:  bound.Right(),
	}, true
}

// FeatureCollection renders the path as GeoJSON. A single point becomes a Point feature,
// longer paths a LineString feature; an empty path yields an empty collection.
func FeatureCollection(path models.Path, props map[string]any) *geojson.FeatureCollection {
	collection := geojson.NewFeatureCollection()

	var feature *geojson.Feature
	switch len(path) {
	case 0:
		return collection
	case 1:
		feature = geojson.NewFeature(orb.Point{path[0].Longitude, path[0].Latitude})
	default:
		feature = geojson.NewFeature(LineString(path))
	}

	for key, value := range props {
		feature.Properties[key] = value
	}

	return collection.Append(feature)
}
