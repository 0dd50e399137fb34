package triptracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibi-group/otp-middleware-sub001/geom"
	"github.com/ibi-group/otp-middleware-sub001/interaction"
	"github.com/ibi-group/otp-middleware-sub001/internal/metrics"
	"github.com/ibi-group/otp-middleware-sub001/journey"
	"github.com/ibi-group/otp-middleware-sub001/otp"
	"github.com/ibi-group/otp-middleware-sub001/publisher"
	"github.com/ibi-group/otp-middleware-sub001/traverse"
)

// ErrAlreadyTracking is returned by Start when the trip already has an
// active journey.
var ErrAlreadyTracking = errors.New("trip is already being tracked")

// PositionPublisher receives every accepted location update. Publish
// failures never affect the tracking result.
type PositionPublisher interface {
	PublishPosition(ev publisher.PositionEvent) error
}

// tripContext is the in-memory shape of one journey's itinerary: the decoded
// and segmented geometry for every leg. Rebuilt on demand after a restart.
type tripContext struct {
	itin    *otp.Itinerary
	traces  map[*otp.Leg]*traverse.LegTrace
	profile journey.MobilityProfile
}

// Tracker runs tracking sessions: it owns the journey store, the itinerary
// provider, and the interaction dispatcher, and computes one status and
// instruction per location update.
type Tracker struct {
	cfg        AppConfig
	store      journey.Store
	provider   otp.Provider
	dispatcher *interaction.Dispatcher
	publisher  PositionPublisher
	metrics    *metrics.Collector

	mu    sync.Mutex
	trips map[string]*tripContext
}

// NewTracker wires a tracker over its collaborators. publisher may be nil.
func NewTracker(cfg AppConfig, store journey.Store, provider otp.Provider, dispatcher *interaction.Dispatcher, pub PositionPublisher, collector *metrics.Collector) *Tracker {
	return &Tracker{
		cfg:        cfg,
		store:      store,
		provider:   provider,
		dispatcher: dispatcher,
		publisher:  pub,
		metrics:    collector,
		trips:      make(map[string]*tripContext),
	}
}

// StartRequest identifies the trip to begin tracking.
type StartRequest struct {
	TripID  string                  `json:"tripId"`
	Profile journey.MobilityProfile `json:"profile"`
}

// UpdateRequest carries one reported location for an active journey.
type UpdateRequest struct {
	JourneyID string                  `json:"journeyId"`
	Location  journey.TrackedLocation `json:"location"`
}

// UpdateResult is what one accepted update produced.
type UpdateResult struct {
	JourneyID       string             `json:"journeyId"`
	Status          journey.TripStatus `json:"tripStatus"`
	Instruction     string             `json:"instruction,omitempty"`
	DeviationMeters float64            `json:"deviationMeters"`
	Completed       bool               `json:"completed,omitempty"`
}

// Start begins a tracking session for the trip: fetches the itinerary,
// builds the leg traces, and persists a fresh journey. A trip can have at
// most one active journey at a time.
func (t *Tracker) Start(ctx context.Context, req StartRequest) (string, error) {
	if existing, err := t.store.GetActiveByTripID(ctx, req.TripID); err == nil && existing != nil {
		return "", fmt.Errorf("%w: trip %s journey %s", ErrAlreadyTracking, req.TripID, existing.ID)
	} else if err != nil && !errors.Is(err, journey.ErrNotFound) {
		return "", err
	}

	tc, err := t.buildContext(ctx, req.TripID, req.Profile)
	if err != nil {
		return "", err
	}

	j := &journey.TrackedJourney{
		ID:        uuid.NewString(),
		TripID:    req.TripID,
		Profile:   req.Profile,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.store.Create(ctx, j); err != nil {
		if errors.Is(err, journey.ErrActiveExists) {
			return "", fmt.Errorf("%w: trip %s", ErrAlreadyTracking, req.TripID)
		}
		return "", err
	}

	t.mu.Lock()
	t.trips[j.ID] = tc
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.ActiveJourneys.Inc()
	}
	log.Printf("tracking started: journey %s trip %s", j.ID, req.TripID)
	return j.ID, nil
}

// Update processes one reported location: classify, build the instruction,
// persist the location, run interaction dispatch, and publish the position.
// Updates against an ended journey fail with journey.ErrEnded.
func (t *Tracker) Update(ctx context.Context, req UpdateRequest) (UpdateResult, error) {
	began := time.Now()

	j, err := t.store.Get(ctx, req.JourneyID)
	if err != nil {
		t.countError()
		return UpdateResult{}, err
	}
	if j.Ended() {
		t.countError()
		return UpdateResult{}, fmt.Errorf("%w: journey %s", journey.ErrEnded, j.ID)
	}

	tc, err := t.context(ctx, j)
	if err != nil {
		t.countError()
		return UpdateResult{}, err
	}

	loc := req.Location
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now().UTC()
	}
	pos := geom.Point{Lat: loc.Lat, Lon: loc.Lon}
	firstUpdate := len(j.Locations) == 0

	c := classify(tc.itin, tc.traces, pos, loc.Timestamp, t.cfg.Tracking)
	tp := TravelerPosition{
		Leg:         c.Leg,
		Trace:       c.Trace,
		Location:    loc,
		Profile:     tc.profile,
		Now:         loc.Timestamp,
		FirstUpdate: firstUpdate,
	}
	instruction := buildInstruction(tp, c, t.cfg.Tracking)

	loc.Status = c.Status
	loc.DeviationMeters = c.DeviationMeters
	if err := t.store.AppendLocation(ctx, j.ID, loc); err != nil {
		t.countError()
		return UpdateResult{}, err
	}

	t.dispatch(ctx, j, tc, c, pos)
	t.publish(j, tc, c, loc)

	result := UpdateResult{
		JourneyID:       j.ID,
		Status:          c.Status,
		Instruction:     instruction,
		DeviationMeters: c.DeviationMeters,
	}

	if t.arrived(tc, c, pos) {
		if err := t.end(ctx, j.ID, journey.TerminatedCompleted, loc.Timestamp); err != nil {
			log.Printf("complete journey %s: %v", j.ID, err)
		} else {
			result.Completed = true
		}
	}

	if t.metrics != nil {
		t.metrics.UpdatesProcessed.WithLabelValues(string(c.Status)).Inc()
		t.metrics.UpdateDuration.Observe(time.Since(began).Seconds())
	}
	return result, nil
}

// Track starts a session when the trip has no active journey, otherwise
// updates the existing one.
func (t *Tracker) Track(ctx context.Context, tripID string, profile journey.MobilityProfile, loc journey.TrackedLocation) (UpdateResult, error) {
	j, err := t.store.GetActiveByTripID(ctx, tripID)
	switch {
	case errors.Is(err, journey.ErrNotFound):
		journeyID, err := t.Start(ctx, StartRequest{TripID: tripID, Profile: profile})
		if err != nil {
			return UpdateResult{}, err
		}
		return t.Update(ctx, UpdateRequest{JourneyID: journeyID, Location: loc})
	case err != nil:
		return UpdateResult{}, err
	}
	return t.Update(ctx, UpdateRequest{JourneyID: j.ID, Location: loc})
}

// End terminates the journey at the traveler's request. Only the first
// termination is recorded.
func (t *Tracker) End(ctx context.Context, journeyID string) error {
	return t.end(ctx, journeyID, journey.TerminatedByUser, time.Now().UTC())
}

// ForceEnd terminates whatever active journey the trip has. Used by trip
// management when a trip is deleted or its itinerary is replaced.
func (t *Tracker) ForceEnd(ctx context.Context, tripID string) error {
	j, err := t.store.GetActiveByTripID(ctx, tripID)
	if err != nil {
		return err
	}
	return t.end(ctx, j.ID, journey.TerminatedForcibly, time.Now().UTC())
}

func (t *Tracker) end(ctx context.Context, journeyID string, reason journey.TerminationReason, at time.Time) error {
	if err := t.store.End(ctx, journeyID, reason, at); err != nil {
		return err
	}
	t.mu.Lock()
	delete(t.trips, journeyID)
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.ActiveJourneys.Dec()
	}
	log.Printf("tracking ended: journey %s reason %s", journeyID, reason)
	return nil
}

// context returns the journey's trip context, rebuilding it from the
// provider and the journey's persisted profile when the cache was lost
// (process restart).
func (t *Tracker) context(ctx context.Context, j *journey.TrackedJourney) (*tripContext, error) {
	t.mu.Lock()
	tc, ok := t.trips[j.ID]
	t.mu.Unlock()
	if ok {
		return tc, nil
	}

	tc, err := t.buildContext(ctx, j.TripID, j.Profile)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.trips[j.ID] = tc
	t.mu.Unlock()
	return tc, nil
}

func (t *Tracker) buildContext(ctx context.Context, tripID string, profile journey.MobilityProfile) (*tripContext, error) {
	itin, err := t.provider.GetItinerary(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("fetch itinerary for trip %s: %w", tripID, err)
	}
	traces := make(map[*otp.Leg]*traverse.LegTrace, len(itin.Legs))
	opts := traverse.Options{StepExclusionRadiusMeters: t.cfg.Tracking.StepExclusionRadiusMeters}
	for i := range itin.Legs {
		leg := &itin.Legs[i]
		trace, err := traverse.BuildTrace(leg, opts)
		if err != nil {
			return nil, fmt.Errorf("trace leg %d of trip %s: %w", i, tripID, err)
		}
		traces[leg] = trace
	}
	return &tripContext{itin: itin, traces: traces, profile: profile}, nil
}

// dispatch runs one interaction pass. Dispatch never fails the update; rule
// or transport problems are logged and counted.
func (t *Tracker) dispatch(ctx context.Context, j *journey.TrackedJourney, tc *tripContext, c Classification, pos geom.Point) {
	if t.dispatcher == nil {
		return
	}
	in := interaction.Input{
		JourneyID:     j.ID,
		TripID:        j.TripID,
		Position:      pos,
		MobilityMode:  tc.profile.Mode(),
		ExtendedPhase: tc.profile.WantsExtendedPhase(),
		Interactions:  j.Interactions,
	}
	if c.Segment != nil {
		in.SegmentFrom = c.Segment.Segment.Start
		in.SegmentTo = c.Segment.Segment.End
		in.HasSegment = true
	}
	if transit := upcomingTransitLeg(tc.itin, c.Leg); transit != nil {
		in.AgencyID = transit.AgencyID
		in.RouteID = transit.RouteID
	}

	out, err := t.dispatcher.Process(ctx, in)
	if err != nil {
		log.Printf("interaction dispatch for journey %s: %v", j.ID, err)
		return
	}
	if t.metrics == nil {
		return
	}
	if out.SentKey != "" {
		t.metrics.InteractionsSent.Inc()
	}
	if n := len(out.CancelledKeys); n > 0 {
		t.metrics.InteractionsCancelled.Add(float64(n))
	}
	if out.Failed {
		t.metrics.InteractionsFailed.Inc()
	}
}

// publish forwards the accepted location downstream, best effort.
func (t *Tracker) publish(j *journey.TrackedJourney, tc *tripContext, c Classification, loc journey.TrackedLocation) {
	if t.publisher == nil {
		return
	}
	ev := publisher.PositionEvent{
		JourneyID: j.ID,
		TripID:    j.TripID,
		Timestamp: loc.Timestamp,
		Lat:       loc.Lat,
		Lon:       loc.Lon,
		Speed:     loc.Speed,
		Status:    loc.Status,
	}
	if c.Leg != nil && c.Leg.IsTransit() {
		ev.RouteID = c.Leg.RouteID
	}
	if err := t.publisher.PublishPosition(ev); err != nil {
		log.Printf("publish position for journey %s: %v", j.ID, err)
	}
}

// arrived reports whether the traveler is at the itinerary's final
// destination on its last leg.
func (t *Tracker) arrived(tc *tripContext, c Classification, pos geom.Point) bool {
	n := len(tc.itin.Legs)
	if n == 0 || c.Leg != &tc.itin.Legs[n-1] {
		return false
	}
	dest := tc.itin.Destination()
	return geom.DistanceMeters(pos, dest.Position()) <= t.cfg.Tracking.DestinationRadiusMeters
}

// upcomingTransitLeg picks the transit leg interaction rules should be
// matched against: the current leg when it is transit, otherwise the next
// transit leg after it.
func upcomingTransitLeg(itin *otp.Itinerary, current *otp.Leg) *otp.Leg {
	if current == nil {
		return nil
	}
	seen := false
	for i := range itin.Legs {
		leg := &itin.Legs[i]
		if leg == current {
			seen = true
		}
		if seen && leg.IsTransit() {
			return leg
		}
	}
	return nil
}

func (t *Tracker) countError() {
	if t.metrics != nil {
		t.metrics.UpdateErrors.Inc()
	}
}
