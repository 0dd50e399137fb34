package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibi-group/otp-middleware-sub001/geom"
)

func testItinerary() *Itinerary {
	base := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	return &Itinerary{
		StartTime: base,
		EndTime:   base.Add(40 * time.Minute),
		Legs: []Leg{
			{
				Mode:      "WALK",
				StartTime: base,
				EndTime:   base.Add(10 * time.Minute),
				To:        Place{Name: "Elm St at 1st Ave", Lat: 33.951, Lon: -84.131},
			},
			{
				Mode:      "BUS",
				AgencyID:  "GCT",
				RouteID:   "40",
				StartTime: base.Add(15 * time.Minute),
				EndTime:   base.Add(40 * time.Minute),
				To:        Place{Name: "Transit Center", Lat: 33.96, Lon: -84.14},
			},
		},
	}
}

func TestLegAt(t *testing.T) {
	itin := testItinerary()
	base := itin.StartTime

	tests := []struct {
		name     string
		at       time.Time
		expected string // mode of expected leg, "" for nil
	}{
		{"before trip start", base.Add(-time.Minute), ""},
		{"at trip start", base, "WALK"},
		{"mid first leg", base.Add(5 * time.Minute), "WALK"},
		{"during wait gap resolves to upcoming leg", base.Add(12 * time.Minute), "BUS"},
		{"mid transit leg", base.Add(20 * time.Minute), "BUS"},
		{"after trip end", base.Add(41 * time.Minute), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leg := itin.LegAt(tt.at)
			if tt.expected == "" {
				assert.Nil(t, leg)
				return
			}
			require.NotNil(t, leg)
			assert.Equal(t, tt.expected, leg.Mode)
		})
	}
}

func TestIsTransit(t *testing.T) {
	assert.True(t, (&Leg{Mode: "BUS"}).IsTransit())
	assert.True(t, (&Leg{Mode: "tram"}).IsTransit())
	assert.False(t, (&Leg{Mode: "WALK"}).IsTransit())
	assert.False(t, (&Leg{Mode: "BICYCLE"}).IsTransit())
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, (&Itinerary{}).Validate(), ErrEmptyItinerary)
	assert.NoError(t, testItinerary().Validate())
}

func TestDestination(t *testing.T) {
	assert.Equal(t, "Transit Center", testItinerary().Destination().Name)
	assert.Equal(t, Place{}, (&Itinerary{}).Destination())
}

func TestDecodePoints(t *testing.T) {
	points := []geom.Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	encoded := EncodePoints(points)

	decoded, err := Geometry{Points: encoded}.DecodePoints()
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	for i := range points {
		assert.InDelta(t, points[i].Lat, decoded[i].Lat, 1e-5)
		assert.InDelta(t, points[i].Lon, decoded[i].Lon, 1e-5)
	}
}

func TestDecodePointsMalformed(t *testing.T) {
	_, err := Geometry{Points: "\x7f\x7f\x7f"}.DecodePoints()
	assert.Error(t, err)
}

func TestDecodePointsEmpty(t *testing.T) {
	points, err := Geometry{}.DecodePoints()
	assert.NoError(t, err)
	assert.Empty(t, points)
}
