package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ibi-group/otp-middleware-sub001/geom"
	"github.com/ibi-group/otp-middleware-sub001/journey"
)

// ErrNoPriorInteraction means a cancel was requested for a key that was
// never sent. That is a caller ordering bug, not a runtime condition, so it
// is surfaced instead of being swallowed.
var ErrNoPriorInteraction = errors.New("interaction: cancel without prior send")

// Request is what a handler needs to perform one outbound interaction.
// Cancel flips the message type on handlers that support cancellation.
type Request struct {
	JourneyID     string     `json:"journeyId"`
	TripID        string     `json:"tripId"`
	Key           string     `json:"key"`
	SegmentID     string     `json:"segmentId,omitempty"`
	AgencyID      string     `json:"agencyId,omitempty"`
	RouteID       string     `json:"routeId,omitempty"`
	Position      geom.Point `json:"position"`
	MobilityMode  string     `json:"mobilityMode,omitempty"`
	ExtendedPhase bool       `json:"extendedPhase,omitempty"`
	Cancel        bool       `json:"cancel,omitempty"`
}

// Handler performs one kind of external interaction.
type Handler interface {
	Invoke(ctx context.Context, req Request) error
}

// Registry maps handler tags to their statically-known implementations.
// Populated once at startup.
type Registry map[HandlerKind]Handler

// Input is the traveler's route context for one update.
type Input struct {
	JourneyID string
	TripID    string
	Position  geom.Point

	// Current-to-next segment endpoints, when the traveler is on a traced
	// leg with a segment ahead.
	SegmentFrom geom.Point
	SegmentTo   geom.Point
	HasSegment  bool

	// Upcoming transit leg identifiers, when one exists.
	AgencyID string
	RouteID  string

	MobilityMode  string
	ExtendedPhase bool

	// Interactions is the journey's idempotency map as read at the start of
	// the update. Correctness does not depend on its freshness; the store's
	// compare-and-swap does the real guarding.
	Interactions map[string]journey.InteractionRecord
}

// Outcome summarizes what one dispatch pass did.
type Outcome struct {
	SentKey       string
	CancelledKeys []string
	Failed        bool
}

// Dispatcher evaluates the rule tables against each update and performs at
// most one send per unique key per journey.
type Dispatcher struct {
	rules    RuleSet
	registry Registry
	store    journey.Store
	timeout  time.Duration
}

// NewDispatcher builds a dispatcher over an immutable rule set.
func NewDispatcher(rules RuleSet, registry Registry, store journey.Store, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Dispatcher{rules: rules, registry: registry, store: store, timeout: timeout}
}

// Process runs one dispatch pass: match rules, send anything newly matched,
// and cancel previously sent agency interactions whose rules no longer
// apply. External-call failures degrade to "not sent" (Outcome.Failed);
// only contract violations return an error.
func (d *Dispatcher) Process(ctx context.Context, in Input) (Outcome, error) {
	var out Outcome

	activeAgencyKey := ""
	if rule := d.rules.MatchAgency(in.AgencyID, in.RouteID); rule != nil && in.AgencyID != "" {
		activeAgencyKey = AgencyKey(in.AgencyID, in.RouteID)
		req := Request{
			JourneyID:     in.JourneyID,
			TripID:        in.TripID,
			Key:           activeAgencyKey,
			AgencyID:      in.AgencyID,
			RouteID:       in.RouteID,
			Position:      in.Position,
			MobilityMode:  in.MobilityMode,
			ExtendedPhase: in.ExtendedPhase,
		}
		d.send(ctx, rule.Handler, req, &out)
	}

	if in.HasSegment {
		if rule := d.rules.MatchSegment(in.SegmentFrom, in.SegmentTo); rule != nil {
			req := Request{
				JourneyID:     in.JourneyID,
				TripID:        in.TripID,
				Key:           SegmentKey(rule.ID),
				SegmentID:     rule.ID,
				Position:      in.Position,
				MobilityMode:  in.MobilityMode,
				ExtendedPhase: in.ExtendedPhase,
			}
			d.send(ctx, rule.Handler, req, &out)
		}
	}

	// Supersede: any sent agency interaction whose key no longer matches the
	// upcoming leg gets one cancel.
	for key, rec := range in.Interactions {
		if rec.State != journey.InteractionSent {
			continue
		}
		if !strings.HasPrefix(key, "agency:") || key == activeAgencyKey {
			continue
		}
		if err := d.CancelSent(ctx, in, key); err != nil {
			if errors.Is(err, ErrNoPriorInteraction) {
				return out, err
			}
			log.Printf("interaction: cancel %s for journey %s failed: %v", key, in.JourneyID, err)
			out.Failed = true
			continue
		}
		out.CancelledKeys = append(out.CancelledKeys, key)
	}

	return out, nil
}

// send claims the key (pending), invokes the handler, and marks the key
// sent. A lost claim means another update already dispatched; that is the
// at-most-once guarantee working, not an error.
func (d *Dispatcher) send(ctx context.Context, kind HandlerKind, req Request, out *Outcome) {
	handler, ok := d.registry[kind]
	if !ok {
		log.Printf("interaction: no handler registered for kind %q", kind)
		return
	}
	payload, _ := json.Marshal(req)

	err := d.store.TransitionInteraction(ctx, req.JourneyID, req.Key, "", journey.InteractionPending, payload)
	if err != nil {
		if !errors.Is(err, journey.ErrInteractionConflict) {
			log.Printf("interaction: claim %s for journey %s: %v", req.Key, req.JourneyID, err)
			out.Failed = true
		}
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := handler.Invoke(callCtx, req); err != nil {
		// The pending entry stays put: the interaction is at-most-once, so a
		// failed call suppresses later attempts rather than retrying.
		log.Printf("interaction: invoke %s for journey %s: %v", req.Key, req.JourneyID, err)
		out.Failed = true
		return
	}

	if err := d.store.TransitionInteraction(ctx, req.JourneyID, req.Key, journey.InteractionPending, journey.InteractionSent, payload); err != nil {
		log.Printf("interaction: mark sent %s for journey %s: %v", req.Key, req.JourneyID, err)
		out.Failed = true
		return
	}
	out.SentKey = req.Key
}

// CancelSent supersedes a previously sent interaction with a cancel message.
// The sent->cancelled transition happens before the outbound call so a
// concurrent update cannot also cancel. ErrNoPriorInteraction when the key
// was never sent.
func (d *Dispatcher) CancelSent(ctx context.Context, in Input, key string) error {
	rec, ok := in.Interactions[key]
	if !ok || rec.State == journey.InteractionPending {
		return fmt.Errorf("%w: key %s", ErrNoPriorInteraction, key)
	}

	var req Request
	if err := json.Unmarshal(rec.Payload, &req); err != nil {
		return fmt.Errorf("interaction: decode payload for %s: %w", key, err)
	}
	req.Cancel = true

	kind := HandlerBusOperator
	if strings.HasPrefix(key, "segment:") {
		kind = HandlerTrafficSignal
	}
	handler, ok := d.registry[kind]
	if !ok {
		return fmt.Errorf("interaction: no handler registered for kind %q", kind)
	}

	payload, _ := json.Marshal(req)
	if err := d.store.TransitionInteraction(ctx, in.JourneyID, key, journey.InteractionSent, journey.InteractionCancelled, payload); err != nil {
		if errors.Is(err, journey.ErrInteractionConflict) {
			return fmt.Errorf("%w: key %s", ErrNoPriorInteraction, key)
		}
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return handler.Invoke(callCtx, req)
}
