// Package otp holds the planned-itinerary model consumed from the trip
// planning service, plus a client for fetching it. Itineraries are read-only
// input for a tracking session.
package otp

import (
	"errors"
	"strings"
	"time"

	"github.com/ibi-group/otp-middleware-sub001/geom"
)

var ErrEmptyItinerary = errors.New("otp: itinerary has no legs")

// Itinerary is one planned journey: an ordered list of mode-homogeneous legs.
type Itinerary struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Legs      []Leg     `json:"legs"`
}

// Leg is one mode-homogeneous portion of an itinerary.
type Leg struct {
	Mode      string    `json:"mode"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	From      Place     `json:"from"`
	To        Place     `json:"to"`
	Geometry  Geometry  `json:"legGeometry"`
	Steps     []Step    `json:"steps"`

	// Transit-only fields.
	AgencyID          string  `json:"agencyId,omitempty"`
	RouteID           string  `json:"routeId,omitempty"`
	RouteShortName    string  `json:"routeShortName,omitempty"`
	TripID            string  `json:"tripId,omitempty"`
	IntermediateStops []Place `json:"intermediateStops,omitempty"`
}

// Geometry is an encoded polyline (standard signed-precision encoding).
type Geometry struct {
	Points string `json:"points"`
	Length int    `json:"length"`
}

// Step is a single maneuver within a walking or driving leg.
type Step struct {
	DistanceMeters    float64 `json:"distance"`
	StreetName        string  `json:"streetName"`
	RelativeDirection string  `json:"relativeDirection"`
	AbsoluteDirection string  `json:"absoluteDirection"`
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
}

// Place is a named location: a leg endpoint or a transit stop.
type Place struct {
	Name      string     `json:"name"`
	StopID    string     `json:"stopId,omitempty"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Arrival   *time.Time `json:"arrival,omitempty"`
	Departure *time.Time `json:"departure,omitempty"`
}

// Position returns the step's maneuver coordinate.
func (s Step) Position() geom.Point {
	return geom.Point{Lat: s.Lat, Lon: s.Lon}
}

// Position returns the place's coordinate.
func (p Place) Position() geom.Point {
	return geom.Point{Lat: p.Lat, Lon: p.Lon}
}

// IsTransit reports whether the leg is ridden rather than traversed on foot
// or by personal vehicle.
func (l *Leg) IsTransit() bool {
	switch strings.ToUpper(l.Mode) {
	case "BUS", "TRAM", "SUBWAY", "RAIL", "FERRY", "GONDOLA", "CABLE_CAR", "FUNICULAR", "TRANSIT":
		return true
	}
	return false
}

// Duration returns the leg's scheduled duration.
func (l *Leg) Duration() time.Duration {
	return l.EndTime.Sub(l.StartTime)
}

// Validate checks the itinerary is usable for tracking.
func (i *Itinerary) Validate() error {
	if len(i.Legs) == 0 {
		return ErrEmptyItinerary
	}
	return nil
}

// LegAt returns the leg whose scheduled window contains t, or nil if t falls
// before the first leg starts or after the last leg ends. Gaps between legs
// (waits at a stop) resolve to the upcoming leg.
func (i *Itinerary) LegAt(t time.Time) *Leg {
	for idx := range i.Legs {
		leg := &i.Legs[idx]
		if t.After(leg.EndTime) {
			continue
		}
		if !t.Before(leg.StartTime) || idx > 0 {
			return leg
		}
	}
	return nil
}

// Destination returns the final arrival place of the itinerary.
func (i *Itinerary) Destination() Place {
	if len(i.Legs) == 0 {
		return Place{}
	}
	return i.Legs[len(i.Legs)-1].To
}
