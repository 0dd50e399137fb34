// Package journey holds the durable per-journey tracking state: the
// append-only location history, the computed status per location, and the
// idempotency map that guards external interactions.
package journey

import (
	"encoding/json"
	"time"
)

// TripStatus classifies a traveler against their planned schedule. It is
// recomputed fresh on every update, never carried forward as a state machine.
type TripStatus string

const (
	StatusAheadOfSchedule TripStatus = "AHEAD_OF_SCHEDULE"
	StatusOnSchedule      TripStatus = "ON_SCHEDULE"
	StatusBehindSchedule  TripStatus = "BEHIND_SCHEDULE"
	StatusDeviated        TripStatus = "DEVIATED"
)

// TerminationReason is why tracking stopped.
type TerminationReason string

const (
	TerminatedByUser    TerminationReason = "USER_TERMINATED"
	TerminatedForcibly  TerminationReason = "FORCIBLY_TERMINATED"
	TerminatedCompleted TerminationReason = "TRIP_COMPLETED"
)

// InteractionState is the lifecycle of one external interaction key.
// Pending is written before the outbound call completes so that two
// near-simultaneous updates cannot both dispatch.
type InteractionState string

const (
	InteractionPending   InteractionState = "PENDING"
	InteractionSent      InteractionState = "SENT"
	InteractionCancelled InteractionState = "CANCELLED"
)

// TrackedLocation is one reported GPS fix plus what was computed from it.
// Append-only; never mutated after creation.
type TrackedLocation struct {
	Timestamp       time.Time  `json:"timestamp"`
	Lat             float64    `json:"lat"`
	Lon             float64    `json:"lon"`
	Speed           *float64   `json:"speed,omitempty"`
	Status          TripStatus `json:"tripStatus"`
	DeviationMeters float64    `json:"deviationMeters"`
}

// InteractionRecord is the last known dispatch state for one idempotency key.
type InteractionRecord struct {
	State     InteractionState `json:"state"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// MobilityProfile is the traveler-supplied set of assistive-device
// indicators, captured at the start of a session and persisted with the
// journey so a rebuilt session keeps serving the same traveler.
type MobilityProfile struct {
	Devices       []string `json:"mobilityDevices,omitempty"`
	VisionLimited bool     `json:"visionLimited,omitempty"`
}

// Mobility mode codes, most-restrictive device wins.
const (
	MobilityNone      = "None"
	MobilityDevice    = "Device"
	MobilityWChairM   = "WChairM"
	MobilityWChairE   = "WChairE"
	MobilityScooter   = "MScootr"
	MobilityLowVision = "LowVision"
)

// Mode reduces the profile to one mobility-mode code.
func (p MobilityProfile) Mode() string {
	mode := MobilityNone
	for _, d := range p.Devices {
		switch d {
		case "electric wheelchair":
			mode = MobilityWChairE
		case "manual wheelchair":
			if mode != MobilityWChairE {
				mode = MobilityWChairM
			}
		case "mobility scooter":
			if mode != MobilityWChairE && mode != MobilityWChairM {
				mode = MobilityScooter
			}
		default:
			if mode == MobilityNone {
				mode = MobilityDevice
			}
		}
	}
	if p.VisionLimited && mode == MobilityNone {
		return MobilityLowVision
	}
	return mode
}

// WantsExtendedPhase reports whether crossing interactions should request an
// extended pedestrian signal phase for this traveler.
func (p MobilityProfile) WantsExtendedPhase() bool {
	return p.VisionLimited || p.Mode() != MobilityNone
}

// TrackedJourney is one active or completed tracking session.
type TrackedJourney struct {
	ID           string                       `json:"id"`
	TripID       string                       `json:"tripId"`
	Profile      MobilityProfile              `json:"profile"`
	Locations    []TrackedLocation            `json:"locations"`
	Interactions map[string]InteractionRecord `json:"interactions"`
	EndReason    TerminationReason            `json:"endReason,omitempty"`
	EndedAt      *time.Time                   `json:"endedAt,omitempty"`
	CreatedAt    time.Time                    `json:"createdAt"`
}

// Ended reports whether the journey has been terminated.
func (j *TrackedJourney) Ended() bool {
	return j.EndReason != ""
}

// LastLocation returns the most recently appended location, or nil when no
// update has been recorded yet.
func (j *TrackedJourney) LastLocation() *TrackedLocation {
	if len(j.Locations) == 0 {
		return nil
	}
	return &j.Locations[len(j.Locations)-1]
}
