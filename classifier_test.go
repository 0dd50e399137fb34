package triptracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibi-group/otp-middleware-sub001/geom"
	"github.com/ibi-group/otp-middleware-sub001/journey"
)

func TestClassify(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cfg := testConfig().Tracking
	itin := testItinerary(base)
	traces := testTraces(t, itin, cfg)

	tests := []struct {
		name   string
		pos    geom.Point
		now    time.Time
		status journey.TripStatus
	}{
		{
			name:   "at walk start on time",
			pos:    walkStart,
			now:    base,
			status: journey.StatusOnSchedule,
		},
		{
			name:   "at walk start two minutes late",
			pos:    walkStart,
			now:    base.Add(2 * time.Minute),
			status: journey.StatusBehindSchedule,
		},
		{
			name:   "at the corner before its scheduled time",
			pos:    walkCorner,
			now:    base,
			status: journey.StatusAheadOfSchedule,
		},
		{
			name:   "a block west of the walk path",
			pos:    geom.Point{Lat: 45.5209, Lon: -122.30128},
			now:    base,
			status: journey.StatusDeviated,
		},
		{
			name:   "still at the boarding stop mid-ride",
			pos:    elmStation,
			now:    base.Add(10 * time.Minute),
			status: journey.StatusBehindSchedule,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := classify(itin, traces, tc.pos, tc.now, cfg)
			assert.Equal(t, tc.status, c.Status)
		})
	}
}

func TestClassifyOnPathDeviationNearZero(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cfg := testConfig().Tracking
	itin := testItinerary(base)
	traces := testTraces(t, itin, cfg)

	c := classify(itin, traces, walkStart, base, cfg)
	require.NotNil(t, c.Leg)
	require.NotNil(t, c.Segment)
	assert.Equal(t, &itin.Legs[0], c.Leg)
	assert.Less(t, c.DeviationMeters, 1.0)
}

func TestClassifyBeforeTripStartFallsBackToNearestLeg(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cfg := testConfig().Tracking
	itin := testItinerary(base)
	traces := testTraces(t, itin, cfg)

	// A minute early at the walk start: no leg is time-active, so the
	// traveler is located by projection and reads as ahead.
	c := classify(itin, traces, walkStart, base.Add(-time.Minute), cfg)
	require.NotNil(t, c.Leg)
	assert.Equal(t, &itin.Legs[0], c.Leg)
	assert.Equal(t, journey.StatusAheadOfSchedule, c.Status)
}

func TestClassifyIsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cfg := testConfig().Tracking
	itin := testItinerary(base)
	traces := testTraces(t, itin, cfg)

	pos := geom.Point{Lat: 45.52095, Lon: -122.30001}
	now := base.Add(90 * time.Second)
	first := classify(itin, traces, pos, now, cfg)
	second := classify(itin, traces, pos, now, cfg)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.DeviationMeters, second.DeviationMeters)
}

func TestClassifyEmptyTraces(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cfg := testConfig().Tracking
	itin := testItinerary(base)

	c := classify(itin, nil, walkStart, base, cfg)
	assert.Equal(t, journey.StatusDeviated, c.Status)
	assert.Nil(t, c.Leg)
}
