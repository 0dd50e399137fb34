package otp

import (
	"fmt"

	gopolyline "github.com/twpayne/go-polyline"

	"github.com/ibi-group/otp-middleware-sub001/geom"
)

// DecodePoints decodes the leg's encoded polyline into travel-order points.
// A malformed or partially consumed encoding is a fatal error for the leg:
// schedule comparison against a corrupt geometry would be meaningless.
func (g Geometry) DecodePoints() ([]geom.Point, error) {
	if g.Points == "" {
		return nil, nil
	}
	coords, rest, err := gopolyline.DecodeCoords([]byte(g.Points))
	if err != nil {
		return nil, fmt.Errorf("otp: decode leg polyline: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("otp: decode leg polyline: %d trailing bytes", len(rest))
	}
	points := make([]geom.Point, len(coords))
	for i, c := range coords {
		points[i] = geom.Point{Lat: c[0], Lon: c[1]}
	}
	return points, nil
}

// EncodePoints encodes points back into the standard polyline format.
// Used by tests and by callers that synthesize leg geometry.
func EncodePoints(points []geom.Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(gopolyline.EncodeCoords(coords))
}
