// Package polyline implements the Encoded Polyline Algorithm Format used by the Google Maps
// web services: points are scaled to a fixed 1e-5 degree lattice, delta encoded, zigzag encoded
// and packed into 5-bit chunks offset into printable ASCII.
//
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/UnknownOlympus/pathway/internal/models"
)

// Precision is the factor used to scale degrees to the integer lattice (5 decimal digits).
const Precision = 1e5

const (
	asciiOffset  = 63
	chunkBits    = 5
	chunkMask    = 0x1f
	continuation = 0x20
	// maxScaled bounds a scaled coordinate so that deltas and their zigzag form fit in int64.
	maxScaled = 1 << 53
	maxShift  = 64
)

// Codec errors.
var (
	ErrInvalidInput   = errors.New("invalid polyline input")
	ErrMalformedInput = errors.New("malformed encoded polyline")
)

// Encode converts a path into its encoded polyline string. Coordinates are rounded half away
// from zero to the nearest 1e-5 degree. An empty path encodes to "".
//
// Encode fails with ErrInvalidInput if a coordinate is NaN, infinite, or too large to scale.
func Encode(path models.Path) (string, error) {
	var buf strings.Builder
	// Most real deltas need 3 or 4 bytes per axis.
	const bytesPerPoint = 8
	buf.Grow(len(path) * bytesPerPoint)

	var prevLat, prevLng int64
	for idx, point := range path {
		lat, err := scale(point.Latitude)
		if err != nil {
			return "", fmt.Errorf("point %d latitude: %w", idx, err)
		}
		lng, err := scale(point.Longitude)
		if err != nil {
			return "", fmt.Errorf("point %d longitude: %w", idx, err)
		}

		writeSigned(&buf, lat-prevLat)
		writeSigned(&buf, lng-prevLng)
		prevLat, prevLng = lat, lng
	}

	return buf.String(), nil
}

// MustEncode is like Encode but panics if the path cannot be encoded.
func MustEncode(path models.Path) string {
	encoded, err := Encode(path)
	if err != nil {
		panic(err)
	}

	return encoded
}

// Decode converts an encoded polyline string back into a path. The empty string decodes
// to an empty path.
//
// Decode fails with ErrMalformedInput if a byte is below '?', a value is cut off by the end of
// the input, or the input holds a latitude without its longitude. No partial path is returned.
func Decode(encoded string) (models.Path, error) {
	// Every point needs at least two bytes.
	const minBytesPerPoint = 2
	path := make(models.Path, 0, len(encoded)/minBytesPerPoint)

	var lat, lng int64
	for idx := 0; idx < len(encoded); {
		dLat, next, err := readSigned(encoded, idx)
		if err != nil {
			return nil, fmt.Errorf("point %d latitude: %w", len(path), err)
		}
		dLng, next, err := readSigned(encoded, next)
		if err != nil {
			return nil, fmt.Errorf("point %d longitude: %w", len(path), err)
		}
		idx = next

		lat += dLat
		lng += dLng
		path = append(path, models.Coordinates{
			Latitude:  float64(lat) / Precision,
			Longitude: float64(lng) / Precision,
		})
	}

	return path, nil
}

// Quantize rounds every coordinate of the path to the lattice used by the codec. The result is
// what Decode returns for the output of Encode.
func Quantize(path models.Path) (models.Path, error) {
	quantized := make(models.Path, len(path))
	for idx, point := range path {
		lat, err := scale(point.Latitude)
		if err != nil {
			return nil, fmt.Errorf("point %d latitude: %w", idx, err)
		}
		lng, err := scale(point.Longitude)
		if err != nil {
			return nil, fmt.Errorf("point %d longitude: %w", idx, err)
		}
		quantized[idx] = models.Coordinates{
			Latitude:  float64(lat) / Precision,
			Longitude: float64(lng) / Precision,
		}
	}

	return quantized, nil
}

// scale moves a degree value onto the integer lattice, rounding half away from zero.
func scale(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: non-finite value %v", ErrInvalidInput, value)
	}

	scaled := math.Round(value * Precision)
	if math.Abs(scaled) > maxScaled {
		return 0, fmt.Errorf("%w: value %v out of range", ErrInvalidInput, value)
	}

	return int64(scaled), nil
}

// writeSigned appends the zigzag, 5-bit chunked form of value.
func writeSigned(buf *strings.Builder, value int64) {
	shifted := value << 1
	if value < 0 {
		shifted = ^shifted
	}

	rest := uint64(shifted)
	for rest >= continuation {
		buf.WriteByte(byte((rest&chunkMask)|continuation) + asciiOffset)
		rest >>= chunkBits
	}
	buf.WriteByte(byte(rest) + asciiOffset)
}

// readSigned reads one value starting at idx and returns it with the index of the next byte.
func readSigned(encoded string, idx int) (int64, int, error) {
	var result uint64
	for shift := 0; ; shift += chunkBits {
		if idx >= len(encoded) {
			return 0, idx, fmt.Errorf("%w: unexpected end of input at byte %d", ErrMalformedInput, idx)
		}
		if shift >= maxShift {
			return 0, idx, fmt.Errorf("%w: value at byte %d overflows 64 bits", ErrMalformedInput, idx)
		}
		if encoded[idx] < asciiOffset {
			return 0, idx, fmt.Errorf("%w: byte %q at %d is below '?'", ErrMalformedInput, encoded[idx], idx)
		}

		chunk := uint64(encoded[idx] - asciiOffset)
		// At shift 60 only the low maxShift-shift bits of a chunk still fit in 64 bits.
		if shift > maxShift-chunkBits && (chunk&chunkMask)>>(maxShift-shift) != 0 {
			return 0, idx, fmt.Errorf("%w: value at byte %d overflows 64 bits", ErrMalformedInput, idx)
		}
		idx++
		result |= (chunk & chunkMask) << shift
		if chunk&continuation == 0 {
			break
		}
	}

	value := int64(result >> 1)
	if result&1 != 0 {
		value = ^value
	}

	return value, idx, nil
}
