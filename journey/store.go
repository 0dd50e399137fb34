package journey

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means no journey exists for the given id.
	ErrNotFound = errors.New("journey: not found")
	// ErrEnded means the journey has already been terminated.
	ErrEnded = errors.New("journey: already ended")
	// ErrActiveExists means the trip already has a not-yet-ended journey.
	ErrActiveExists = errors.New("journey: trip already has an active journey")
	// ErrInteractionConflict means an idempotency transition lost its
	// compare-and-swap: the stored state did not match the expected one.
	ErrInteractionConflict = errors.New("journey: interaction state conflict")
)

// Store is the durable record of tracked journeys. Implementations must
// serialize interaction transitions for the same journey; the core relies on
// TransitionInteraction being an atomic compare-and-swap so that two
// near-simultaneous updates cannot both observe "not yet sent".
type Store interface {
	// Create persists a new journey. The journey's ID must be set. A trip
	// may have at most one active journey; ErrActiveExists otherwise.
	Create(ctx context.Context, j *TrackedJourney) error

	// Get returns the journey, including its location history and
	// interaction map. ErrNotFound if absent.
	Get(ctx context.Context, journeyID string) (*TrackedJourney, error)

	// GetActiveByTripID returns the not-yet-ended journey for a trip, if any.
	GetActiveByTripID(ctx context.Context, tripID string) (*TrackedJourney, error)

	// AppendLocation appends one fix to the journey's history.
	// ErrEnded if the journey has been terminated.
	AppendLocation(ctx context.Context, journeyID string, loc TrackedLocation) error

	// TransitionInteraction atomically moves the idempotency entry for key
	// from prev to next, writing payload alongside. prev == "" asserts that
	// no entry exists yet. ErrInteractionConflict when the stored state does
	// not match prev.
	TransitionInteraction(ctx context.Context, journeyID, key string, prev, next InteractionState, payload []byte) error

	// End terminates the journey with a reason. Only the first call records
	// a reason; later calls return ErrEnded.
	End(ctx context.Context, journeyID string, reason TerminationReason, at time.Time) error
}
