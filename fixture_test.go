package triptracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ibi-group/otp-middleware-sub001/geom"
	"github.com/ibi-group/otp-middleware-sub001/otp"
	"github.com/ibi-group/otp-middleware-sub001/traverse"
)

// The fixture itinerary: a five-minute walk north on 30th Ave, a right turn
// onto Oak St at the corner, then a bus leg east on route 40 with three
// intermediate stops.
//
//	walk: home (45.5200) -> corner (45.5218) -> Elm Station
//	bus:  Elm Station -> First Ave -> Second Ave -> Third Ave -> City Center
var (
	walkStart  = geom.Point{Lat: 45.5200, Lon: -122.3000}
	walkMid    = geom.Point{Lat: 45.5209, Lon: -122.3000}
	walkCorner = geom.Point{Lat: 45.5218, Lon: -122.3000}
	elmStation = geom.Point{Lat: 45.5218, Lon: -122.29872}

	busStop1   = geom.Point{Lat: 45.5218, Lon: -122.29616}
	busStop2   = geom.Point{Lat: 45.5218, Lon: -122.29360}
	busStop3   = geom.Point{Lat: 45.5218, Lon: -122.29104}
	cityCenter = geom.Point{Lat: 45.5218, Lon: -122.28848}
)

func testConfig() AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return cfg
}

func place(name string, p geom.Point) otp.Place {
	return otp.Place{Name: name, Lat: p.Lat, Lon: p.Lon}
}

func testItinerary(base time.Time) *otp.Itinerary {
	walk := otp.Leg{
		Mode:      "WALK",
		StartTime: base,
		EndTime:   base.Add(5 * time.Minute),
		From:      place("Home", walkStart),
		To:        place("Elm Station", elmStation),
		Geometry: otp.Geometry{
			Points: otp.EncodePoints([]geom.Point{walkStart, walkMid, walkCorner, elmStation}),
		},
		Steps: []otp.Step{
			{
				StreetName:        "Oak St",
				RelativeDirection: "RIGHT",
				AbsoluteDirection: "EAST",
				Lat:               walkCorner.Lat,
				Lon:               walkCorner.Lon,
			},
		},
	}
	bus := otp.Leg{
		Mode:      "BUS",
		StartTime: base.Add(7 * time.Minute),
		EndTime:   base.Add(17 * time.Minute),
		From:      place("Elm Station", elmStation),
		To:        place("City Center", cityCenter),
		AgencyID:  "GCT",
		RouteID:   "40",
		TripID:    "bus-trip-40",
		Geometry: otp.Geometry{
			Points: otp.EncodePoints([]geom.Point{elmStation, busStop1, busStop2, busStop3, cityCenter}),
		},
		IntermediateStops: []otp.Place{
			place("First Ave", busStop1),
			place("Second Ave", busStop2),
			place("Third Ave", busStop3),
		},
	}
	return &otp.Itinerary{
		StartTime: walk.StartTime,
		EndTime:   bus.EndTime,
		Legs:      []otp.Leg{walk, bus},
	}
}

func testTraces(t *testing.T, itin *otp.Itinerary, cfg TrackingConfig) map[*otp.Leg]*traverse.LegTrace {
	t.Helper()
	traces := make(map[*otp.Leg]*traverse.LegTrace, len(itin.Legs))
	opts := traverse.Options{StepExclusionRadiusMeters: cfg.StepExclusionRadiusMeters}
	for i := range itin.Legs {
		leg := &itin.Legs[i]
		trace, err := traverse.BuildTrace(leg, opts)
		require.NoError(t, err)
		traces[leg] = trace
	}
	return traces
}
