// Package publisher emits live journey positions for downstream consumers
// (trip monitors, analytics) as GTFS-RT VehiclePosition feed messages over
// NATS. Publishing is best effort: a failure never affects the update that
// produced the position.
package publisher

import (
	"fmt"
	"log"
	"strings"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"

	"github.com/ibi-group/otp-middleware-sub001/journey"
)

// PositionEvent is one processed update worth publishing.
type PositionEvent struct {
	JourneyID string
	TripID    string
	RouteID   string
	Timestamp time.Time
	Lat       float64
	Lon       float64
	Speed     *float64
	Status    journey.TripStatus
}

// NATSPublisher publishes position events on tracking.position.<tripID>.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATSPublisher connects to NATS with reconnect logging.
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("trip-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) { log.Printf("nats disconnected") }),
		nats.ReconnectHandler(func(_ *nats.Conn) { log.Printf("nats reconnected") }),
	)
	if err != nil {
		return nil, err
	}
	if subjectPrefix == "" {
		subjectPrefix = "tracking.position"
	}
	return &NATSPublisher{nc: nc, subjectPrefix: subjectPrefix}, nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// PublishPosition encodes the event as a single-entity GTFS-RT FeedMessage
// and publishes it.
func (p *NATSPublisher) PublishPosition(ev PositionEvent) error {
	msg := EncodeFeedMessage(ev)
	buf, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, subjectToken(ev.TripID))
	return p.nc.Publish(subject, buf)
}

// EncodeFeedMessage builds the GTFS-RT representation of one position event.
// The journey id rides as the vehicle id; the computed status is not part of
// the GTFS-RT vocabulary and travels in the vehicle label.
func EncodeFeedMessage(ev PositionEvent) *gtfsrt.FeedMessage {
	ts := uint64(ev.Timestamp.Unix())
	lat := float32(ev.Lat)
	lon := float32(ev.Lon)
	pos := &gtfsrt.Position{Latitude: &lat, Longitude: &lon}
	if ev.Speed != nil {
		speed := float32(*ev.Speed)
		pos.Speed = &speed
	}
	entityID := ev.JourneyID
	label := string(ev.Status)
	return &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsrt.FeedHeader_DIFFERENTIAL.Enum(),
			Timestamp:           &ts,
		},
		Entity: []*gtfsrt.FeedEntity{{
			Id: &entityID,
			Vehicle: &gtfsrt.VehiclePosition{
				Trip: &gtfsrt.TripDescriptor{
					TripId:  proto.String(ev.TripID),
					RouteId: proto.String(ev.RouteID),
				},
				Vehicle: &gtfsrt.VehicleDescriptor{
					Id:    proto.String(ev.JourneyID),
					Label: &label,
				},
				Position:  pos,
				Timestamp: &ts,
			},
		}},
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, wildcards, or separators.
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
