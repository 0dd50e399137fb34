// Package traverse converts a planned leg into time- and distance-annotated
// segments and locates a traveler along them. It is the geometric core of
// trip tracking: everything downstream (schedule classification, guidance,
// interactions) works in terms of the traces built here.
package traverse

import (
	"time"

	"github.com/ibi-group/otp-middleware-sub001/geom"
	"github.com/ibi-group/otp-middleware-sub001/otp"
)

// DefaultStepExclusionRadiusMeters is how close a raw polyline point may sit
// to an injected maneuver point before it is discarded. Keeps injected
// boundaries from producing near-zero-length segments.
const DefaultStepExclusionRadiusMeters = 10.0

// Options tunes trace construction.
type Options struct {
	// StepExclusionRadiusMeters overrides the default exclusion radius
	// when positive.
	StepExclusionRadiusMeters float64
}

func (o Options) exclusionRadius() float64 {
	if o.StepExclusionRadiusMeters > 0 {
		return o.StepExclusionRadiusMeters
	}
	return DefaultStepExclusionRadiusMeters
}

// Waypoint is one point of a leg's traversal geometry after maneuver and
// stop injection. StepIndex/StopIndex are -1 unless the point was injected
// for the corresponding leg step or intermediate stop.
type Waypoint struct {
	Point     geom.Point
	StepIndex int
	StopIndex int
}

// LegSegment is the span between two consecutive waypoints. Cumulative
// fields are measured from the leg's start to the segment's end, so the
// last segment's cumulative time equals the leg's total duration. Time is
// allocated proportionally to distance (locally uniform speed).
type LegSegment struct {
	Start          geom.Point
	End            geom.Point
	StepIndex      int // step at the segment's start, -1 if none
	DistanceMeters float64
	TimeInSegment  time.Duration
	CumulativeMeters float64
	CumulativeTime   time.Duration
}

// ElapsedAt returns the scheduled time from the leg's start to the point a
// fraction t of the way through this segment.
func (s LegSegment) ElapsedAt(t float64) time.Duration {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return s.CumulativeTime - s.TimeInSegment + time.Duration(t*float64(s.TimeInSegment))
}

// LegTrace is the derived traversal geometry for one leg.
type LegTrace struct {
	Leg       *otp.Leg
	Waypoints []Waypoint
	Segments  []LegSegment
}

// BuildTrace decodes the leg's polyline, injects maneuver (walk) or stop
// (transit) coordinates at their travel-order positions, drops raw points
// inside the exclusion radius of an injected point, and allocates the leg's
// duration across the resulting segments in proportion to distance.
//
// A leg whose geometry decodes to fewer than two points yields a trace with
// no segments; callers must treat that as "no schedule comparison possible".
// A malformed polyline is a fatal error for the leg.
func BuildTrace(leg *otp.Leg, opts Options) (*LegTrace, error) {
	points, err := leg.Geometry.DecodePoints()
	if err != nil {
		return nil, err
	}
	trace := &LegTrace{Leg: leg}
	if len(points) < 2 {
		return trace, nil
	}

	waypoints := make([]Waypoint, len(points))
	for i, p := range points {
		waypoints[i] = Waypoint{Point: p, StepIndex: -1, StopIndex: -1}
	}

	if leg.IsTransit() {
		for i, stop := range leg.IntermediateStops {
			waypoints = injectMarker(waypoints, stop.Position(), -1, i)
		}
	} else {
		for i, step := range leg.Steps {
			waypoints = injectMarker(waypoints, step.Position(), i, -1)
		}
	}

	waypoints = dropNearInjected(waypoints, opts.exclusionRadius())
	trace.Waypoints = waypoints

	// Per-pair distances and the leg total.
	total := 0.0
	dists := make([]float64, 0, len(waypoints)-1)
	for i := 0; i+1 < len(waypoints); i++ {
		d := geom.DistanceMeters(waypoints[i].Point, waypoints[i+1].Point)
		dists = append(dists, d)
		total += d
	}
	if total == 0 {
		return trace, nil
	}

	duration := leg.Duration()
	segments := make([]LegSegment, 0, len(dists))
	cumMeters := 0.0
	var cumTime time.Duration
	for i, d := range dists {
		inSeg := time.Duration(float64(duration) * d / total)
		if i == len(dists)-1 {
			// Last segment absorbs rounding so cumulative time lands
			// exactly on the leg duration.
			inSeg = duration - cumTime
		}
		cumMeters += d
		cumTime += inSeg
		segments = append(segments, LegSegment{
			Start:            waypoints[i].Point,
			End:              waypoints[i+1].Point,
			StepIndex:        waypoints[i].StepIndex,
			DistanceMeters:   d,
			TimeInSegment:    inSeg,
			CumulativeMeters: cumMeters,
			CumulativeTime:   cumTime,
		})
	}
	trace.Segments = segments
	return trace, nil
}

// injectMarker inserts a maneuver or stop coordinate into the waypoint
// sequence at its travel-order position: after the start of the pair of
// consecutive waypoints it projects closest onto. Later candidates win ties
// so repeated identical geometry keeps markers in travel order.
func injectMarker(waypoints []Waypoint, p geom.Point, stepIndex, stopIndex int) []Waypoint {
	if len(waypoints) < 2 {
		return waypoints
	}
	bestIdx := 0
	bestDist := 0.0
	for i := 0; i+1 < len(waypoints); i++ {
		_, d := geom.NearestOnSegment(p, waypoints[i].Point, waypoints[i+1].Point)
		if i == 0 || d <= bestDist {
			bestIdx = i
			bestDist = d
		}
	}
	wp := Waypoint{Point: p, StepIndex: stepIndex, StopIndex: stopIndex}
	out := make([]Waypoint, 0, len(waypoints)+1)
	out = append(out, waypoints[:bestIdx+1]...)
	out = append(out, wp)
	out = append(out, waypoints[bestIdx+1:]...)
	return out
}

// dropNearInjected removes raw polyline points that sit within radius of an
// injected marker point. Marker points themselves are always kept.
func dropNearInjected(waypoints []Waypoint, radius float64) []Waypoint {
	out := waypoints[:0:0]
	for i, wp := range waypoints {
		if wp.StepIndex >= 0 || wp.StopIndex >= 0 {
			out = append(out, wp)
			continue
		}
		near := false
		for j, other := range waypoints {
			if j == i || (other.StepIndex < 0 && other.StopIndex < 0) {
				continue
			}
			if geom.DistanceMeters(wp.Point, other.Point) <= radius {
				near = true
				break
			}
		}
		if !near {
			out = append(out, wp)
		}
	}
	return out
}
