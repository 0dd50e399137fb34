package triptracker

import (
	"time"

	"github.com/ibi-group/otp-middleware-sub001/geom"
	"github.com/ibi-group/otp-middleware-sub001/journey"
	"github.com/ibi-group/otp-middleware-sub001/otp"
	"github.com/ibi-group/otp-middleware-sub001/traverse"
)

// TravelerPosition is the request-scoped composite the guidance generator
// works from. Built fresh for each update; never persisted. The mobility
// profile itself lives on the journey record.
type TravelerPosition struct {
	Leg         *otp.Leg
	Trace       *traverse.LegTrace
	Location    journey.TrackedLocation
	Profile     journey.MobilityProfile
	Now         time.Time
	FirstUpdate bool
}

// Point returns the reported coordinate of the latest location.
func (tp TravelerPosition) Point() geom.Point {
	return geom.Point{Lat: tp.Location.Lat, Lon: tp.Location.Lon}
}
