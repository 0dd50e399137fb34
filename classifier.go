package triptracker

import (
	"time"

	"github.com/ibi-group/otp-middleware-sub001/geom"
	"github.com/ibi-group/otp-middleware-sub001/journey"
	"github.com/ibi-group/otp-middleware-sub001/otp"
	"github.com/ibi-group/otp-middleware-sub001/traverse"
)

// Classification is the outcome of comparing one reported position against
// the planned itinerary. Recomputed fresh every update; pure function of
// (itinerary, position, now).
type Classification struct {
	Status          journey.TripStatus
	DeviationMeters float64

	// Leg/Trace/Segment locate the traveler when a comparable segment was
	// found; Segment is nil otherwise.
	Leg     *otp.Leg
	Trace   *traverse.LegTrace
	Segment *traverse.SegmentMatch
}

// classify locates the active leg by time, projects the position onto its
// segments, and compares scheduled elapsed time against actual elapsed
// time. Reported speed never influences classification.
func classify(itin *otp.Itinerary, traces map[*otp.Leg]*traverse.LegTrace, p geom.Point, now time.Time, cfg TrackingConfig) Classification {
	leg := itin.LegAt(now)
	var trace *traverse.LegTrace
	if leg != nil {
		trace = traces[leg]
	}

	// No time-active leg, or a leg with no comparable geometry: fall back to
	// the nearest leg by projection so a traveler slightly early or late is
	// still located on the path.
	if trace == nil || len(trace.Segments) == 0 {
		leg, trace = nearestLeg(itin, traces, p)
	}
	if trace == nil || len(trace.Segments) == 0 {
		return Classification{Status: journey.StatusDeviated}
	}

	match, ok := trace.NearestSegment(p)
	if !ok {
		return Classification{Status: journey.StatusDeviated, Leg: leg, Trace: trace}
	}
	c := Classification{
		DeviationMeters: match.DistanceMeters,
		Leg:             leg,
		Trace:           trace,
		Segment:         &match,
	}

	if match.DistanceMeters > cfg.DeviationMeters {
		c.Status = journey.StatusDeviated
		return c
	}

	expected := match.Segment.ElapsedAt(match.Fraction)
	actual := now.Sub(leg.StartTime)
	delta := actual - expected
	band := time.Duration(cfg.ScheduleBandSeconds) * time.Second
	switch {
	case delta < -band:
		c.Status = journey.StatusAheadOfSchedule
	case delta > band:
		c.Status = journey.StatusBehindSchedule
	default:
		c.Status = journey.StatusOnSchedule
	}
	return c
}

// nearestLeg returns the leg whose trace projects closest to p. Later legs
// win ties, consistent with segment-level tie-breaking.
func nearestLeg(itin *otp.Itinerary, traces map[*otp.Leg]*traverse.LegTrace, p geom.Point) (*otp.Leg, *traverse.LegTrace) {
	var bestLeg *otp.Leg
	var bestTrace *traverse.LegTrace
	bestDist := 0.0
	for i := range itin.Legs {
		leg := &itin.Legs[i]
		trace := traces[leg]
		if trace == nil || len(trace.Segments) == 0 {
			continue
		}
		match, ok := trace.NearestSegment(p)
		if !ok {
			continue
		}
		if bestLeg == nil || match.DistanceMeters <= bestDist {
			bestLeg = leg
			bestTrace = trace
			bestDist = match.DistanceMeters
		}
	}
	return bestLeg, bestTrace
}
