package traverse

import (
	"github.com/ibi-group/otp-middleware-sub001/geom"
)

// PointMatch is the nearest waypoint to a reported position.
type PointMatch struct {
	Index          int
	Waypoint       Waypoint
	DistanceMeters float64
}

// SegmentMatch is the nearest segment to a reported position, together with
// the projection of the position onto it.
type SegmentMatch struct {
	Index          int
	Segment        LegSegment
	NearestPoint   geom.Point
	DistanceMeters float64
	// Fraction is how far along the segment the projection falls, in [0, 1].
	Fraction float64
}

// NearestWaypoint returns the waypoint closest to p. Equidistant candidates
// resolve to the later one in travel order, which keeps progress monotonic
// when geometry doubles back on itself.
func (tr *LegTrace) NearestWaypoint(p geom.Point) (PointMatch, bool) {
	if len(tr.Waypoints) == 0 {
		return PointMatch{}, false
	}
	best := PointMatch{Index: -1}
	for i, wp := range tr.Waypoints {
		d := geom.DistanceMeters(p, wp.Point)
		if best.Index < 0 || d <= best.DistanceMeters {
			best = PointMatch{Index: i, Waypoint: wp, DistanceMeters: d}
		}
	}
	return best, true
}

// NearestSegment returns the segment whose projection of p is closest.
// Ties resolve to the later segment in travel order.
func (tr *LegTrace) NearestSegment(p geom.Point) (SegmentMatch, bool) {
	if len(tr.Segments) == 0 {
		return SegmentMatch{}, false
	}
	best := SegmentMatch{Index: -1}
	for i, seg := range tr.Segments {
		nearest, d := geom.NearestOnSegment(p, seg.Start, seg.End)
		if best.Index < 0 || d <= best.DistanceMeters {
			frac := 0.0
			if seg.DistanceMeters > 0 {
				frac = geom.DistanceMeters(seg.Start, nearest) / seg.DistanceMeters
				if frac > 1 {
					frac = 1
				}
			}
			best = SegmentMatch{
				Index:          i,
				Segment:        seg,
				NearestPoint:   nearest,
				DistanceMeters: d,
				Fraction:       frac,
			}
		}
	}
	return best, true
}

// NextStepIndex returns the leg step index of the first maneuver waypoint at
// or after waypointIndex, or -1 when no maneuver remains.
func (tr *LegTrace) NextStepIndex(waypointIndex int) int {
	for i := waypointIndex; i >= 0 && i < len(tr.Waypoints); i++ {
		if tr.Waypoints[i].StepIndex >= 0 {
			return tr.Waypoints[i].StepIndex
		}
	}
	return -1
}

// StopsRemaining counts intermediate-stop waypoints strictly after
// waypointIndex. Transit guidance uses it to phrase alighting urgency.
func (tr *LegTrace) StopsRemaining(waypointIndex int) int {
	n := 0
	for i := waypointIndex + 1; i < len(tr.Waypoints); i++ {
		if tr.Waypoints[i].StopIndex >= 0 {
			n++
		}
	}
	return n
}
