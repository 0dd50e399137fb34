package publisher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibi-group/otp-middleware-sub001/journey"
)

func TestEncodeFeedMessage(t *testing.T) {
	speed := 1.4
	ev := PositionEvent{
		JourneyID: "j1",
		TripID:    "trip-1",
		RouteID:   "40",
		Timestamp: time.Date(2024, 6, 3, 8, 5, 0, 0, time.UTC),
		Lat:       33.95,
		Lon:       -84.13,
		Speed:     &speed,
		Status:    journey.StatusOnSchedule,
	}

	msg := EncodeFeedMessage(ev)
	require.Len(t, msg.Entity, 1)

	vp := msg.Entity[0].Vehicle
	require.NotNil(t, vp)
	assert.Equal(t, "trip-1", vp.Trip.GetTripId())
	assert.Equal(t, "40", vp.Trip.GetRouteId())
	assert.Equal(t, "j1", vp.Vehicle.GetId())
	assert.Equal(t, "ON_SCHEDULE", vp.Vehicle.GetLabel())
	assert.InDelta(t, 33.95, float64(vp.Position.GetLatitude()), 1e-5)
	assert.InDelta(t, -84.13, float64(vp.Position.GetLongitude()), 1e-5)
	assert.InDelta(t, 1.4, float64(vp.Position.GetSpeed()), 1e-5)
	assert.Equal(t, uint64(ev.Timestamp.Unix()), vp.GetTimestamp())
}

func TestEncodeFeedMessageNoSpeed(t *testing.T) {
	msg := EncodeFeedMessage(PositionEvent{JourneyID: "j1", Timestamp: time.Now()})
	require.Len(t, msg.Entity, 1)
	assert.Nil(t, msg.Entity[0].Vehicle.Position.Speed)
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "trip_1", subjectToken("trip.1"))
	assert.Equal(t, "a_b", subjectToken("a/b"))
	assert.Equal(t, "_", subjectToken(" "))
}
