package geom

import (
	"math"
)

const earthRadiusMeters = 6371000.0

// Point is a geographic coordinate (WGS 84).
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// IsValid reports whether the point is a plausible WGS 84 coordinate.
func (p Point) IsValid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceMeters returns the haversine distance between two points in meters.
func DistanceMeters(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)
	la1 := toRadians(a.Lat)
	la2 := toRadians(b.Lat)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Bearing returns the initial great-circle bearing from a to b in degrees [0, 360).
func Bearing(from, to Point) float64 {
	la1 := toRadians(from.Lat)
	la2 := toRadians(to.Lat)
	dLon := toRadians(to.Lon - from.Lon)
	y := math.Sin(dLon) * math.Cos(la2)
	x := math.Cos(la1)*math.Sin(la2) - math.Sin(la1)*math.Cos(la2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// BearingDelta returns the signed smallest rotation from bearing a to bearing b
// in degrees (-180, 180]. Positive means b is clockwise of a.
func BearingDelta(a, b float64) float64 {
	d := math.Mod(b-a+540, 360) - 180
	if d == -180 {
		return 180
	}
	return d
}

// Interpolate returns the point a fraction t of the way from a to b.
// t is clamped to [0, 1]. Linear in lat/lon, which is adequate for the
// short segments this package deals with.
func Interpolate(a, b Point, t float64) Point {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Point{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
}

// NearestOnSegment projects p onto the segment a-b and returns the nearest
// point on the segment together with the haversine distance from p to it
// in meters. The projection is done in a local equirectangular plane
// centered on a, which is accurate at itinerary-segment scale.
func NearestOnSegment(p, a, b Point) (Point, float64) {
	cosLat := math.Cos(toRadians(a.Lat))
	ax, ay := 0.0, 0.0
	bx := (b.Lon - a.Lon) * cosLat
	by := b.Lat - a.Lat
	px := (p.Lon - a.Lon) * cosLat
	py := p.Lat - a.Lat

	vx := bx - ax
	vy := by - ay
	denom := vx*vx + vy*vy
	t := 0.0
	if denom > 0 {
		t = (px*vx + py*vy) / denom
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}
	nearest := Interpolate(a, b, t)
	return nearest, DistanceMeters(p, nearest)
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
