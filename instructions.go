package triptracker

import (
	"fmt"
	"math"
	"strings"

	"github.com/ibi-group/otp-middleware-sub001/geom"
	"github.com/ibi-group/otp-middleware-sub001/journey"
	"github.com/ibi-group/otp-middleware-sub001/otp"
)

// buildInstruction turns the traveler's physical state into one guidance
// string, or "" when nothing is worth saying. Identical (leg, nearest
// maneuver, status, radius band) inputs always yield identical text; the UI
// depends on that to avoid flapping.
func buildInstruction(tp TravelerPosition, c Classification, cfg TrackingConfig) string {
	if c.Leg == nil || c.Trace == nil {
		return ""
	}
	if c.Leg.IsTransit() {
		return transitInstruction(tp, c, cfg)
	}
	return walkInstruction(tp, c, cfg)
}

func transitInstruction(tp TravelerPosition, c Classification, cfg TrackingConfig) string {
	pos := tp.Point()
	alight := c.Leg.To
	distToAlight := geom.DistanceMeters(pos, alight.Position())

	if distToAlight <= cfg.ImmediateRadiusMeters {
		return "Get off here"
	}

	remaining := len(c.Leg.IntermediateStops)
	if match, ok := c.Trace.NearestWaypoint(pos); ok {
		remaining = c.Trace.StopsRemaining(match.Index)
	}
	if remaining == 0 {
		return "Get off at the next stop"
	}
	if remaining <= cfg.TransitApproachStops || distToAlight <= cfg.TransitApproachMeters {
		return "Your stop is coming up"
	}
	return ""
}

func walkInstruction(tp TravelerPosition, c Classification, cfg TrackingConfig) string {
	pos := tp.Point()
	dest := c.Leg.To

	distToDest := geom.DistanceMeters(pos, dest.Position())
	if distToDest <= cfg.DestinationRadiusMeters {
		return arrivedText(dest)
	}

	step := nextStep(tp, c)

	// A deviated walker gets the street to head back toward, never a turn
	// direction computed from a position that is off the path.
	if c.Status == journey.StatusDeviated {
		return "Head to " + headingTarget(step, dest)
	}

	if distToDest <= cfg.UpcomingRadiusMeters {
		return "Your destination is ahead"
	}

	if step != nil {
		distToStep := geom.DistanceMeters(pos, step.Position())
		if distToStep <= cfg.ImmediateRadiusMeters {
			return turnText(pos, *step) + " now"
		}
		if distToStep <= cfg.UpcomingRadiusMeters {
			return turnText(pos, *step)
		}
	}

	if tp.FirstUpdate {
		return "Head to " + headingTarget(step, dest)
	}
	return ""
}

// nextStep picks the upcoming maneuver: the first step waypoint at or after
// the traveler's nearest waypoint.
func nextStep(tp TravelerPosition, c Classification) *otp.Step {
	match, ok := c.Trace.NearestWaypoint(tp.Point())
	if !ok {
		return nil
	}
	idx := c.Trace.NextStepIndex(match.Index)
	if idx < 0 || idx >= len(c.Leg.Steps) {
		return nil
	}
	return &c.Leg.Steps[idx]
}

func headingTarget(step *otp.Step, dest otp.Place) string {
	if step != nil && step.StreetName != "" {
		return step.StreetName
	}
	if dest.Name != "" {
		return dest.Name
	}
	return "your destination"
}

func arrivedText(dest otp.Place) string {
	if dest.Name != "" {
		return "You have arrived at " + dest.Name
	}
	return "You have arrived"
}

// turnText phrases the maneuver by comparing the bearing from the traveler
// to the maneuver point against the step's recorded bearing.
func turnText(pos geom.Point, step otp.Step) string {
	street := step.StreetName
	if street == "" {
		street = "the next street"
	}
	stepBearing, ok := absoluteBearing(step.AbsoluteDirection)
	if !ok {
		// No recorded bearing: fall back to the planner's relative direction.
		if dir := strings.ToLower(strings.ReplaceAll(step.RelativeDirection, "_", " ")); dir != "" && dir != "continue" && dir != "depart" {
			return fmt.Sprintf("Turn %s onto %s", dir, street)
		}
		return "Continue on " + street
	}
	approach := geom.Bearing(pos, step.Position())
	delta := geom.BearingDelta(approach, stepBearing)

	side := "right"
	if delta < 0 {
		side = "left"
	}
	switch abs := math.Abs(delta); {
	case abs < 30:
		return "Continue on " + street
	case abs < 60:
		return fmt.Sprintf("Turn slight %s onto %s", side, street)
	case abs < 135:
		return fmt.Sprintf("Turn %s onto %s", side, street)
	case abs < 160:
		return fmt.Sprintf("Turn hard %s onto %s", side, street)
	default:
		return "Turn around onto " + street
	}
}

func absoluteBearing(direction string) (float64, bool) {
	switch strings.ToUpper(direction) {
	case "NORTH":
		return 0, true
	case "NORTHEAST":
		return 45, true
	case "EAST":
		return 90, true
	case "SOUTHEAST":
		return 135, true
	case "SOUTH":
		return 180, true
	case "SOUTHWEST":
		return 225, true
	case "WEST":
		return 270, true
	case "NORTHWEST":
		return 315, true
	}
	return 0, false
}
