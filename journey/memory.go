package journey

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. A single mutex serializes all
// journeys; for the per-update access pattern of this core that is cheap,
// and it gives the same transition atomicity the Postgres store provides
// with row-level compare-and-swap.
type MemoryStore struct {
	mu       sync.Mutex
	journeys map[string]*TrackedJourney
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{journeys: map[string]*TrackedJourney{}}
}

func (s *MemoryStore) Create(_ context.Context, j *TrackedJourney) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.journeys {
		if existing.TripID == j.TripID && !existing.Ended() {
			return ErrActiveExists
		}
	}
	cp := copyJourney(j)
	if cp.Interactions == nil {
		cp.Interactions = map[string]InteractionRecord{}
	}
	s.journeys[j.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, journeyID string) (*TrackedJourney, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[journeyID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJourney(j), nil
}

func (s *MemoryStore) GetActiveByTripID(_ context.Context, tripID string) (*TrackedJourney, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.journeys {
		if j.TripID == tripID && !j.Ended() {
			return copyJourney(j), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) AppendLocation(_ context.Context, journeyID string, loc TrackedLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[journeyID]
	if !ok {
		return ErrNotFound
	}
	if j.Ended() {
		return ErrEnded
	}
	j.Locations = append(j.Locations, loc)
	return nil
}

func (s *MemoryStore) TransitionInteraction(_ context.Context, journeyID, key string, prev, next InteractionState, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[journeyID]
	if !ok {
		return ErrNotFound
	}
	rec, exists := j.Interactions[key]
	if prev == "" {
		if exists {
			return ErrInteractionConflict
		}
	} else if !exists || rec.State != prev {
		return ErrInteractionConflict
	}
	j.Interactions[key] = InteractionRecord{
		State:     next,
		Payload:   append([]byte(nil), payload...),
		UpdatedAt: time.Now(),
	}
	return nil
}

func (s *MemoryStore) End(_ context.Context, journeyID string, reason TerminationReason, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[journeyID]
	if !ok {
		return ErrNotFound
	}
	if j.Ended() {
		return ErrEnded
	}
	j.EndReason = reason
	t := at
	j.EndedAt = &t
	return nil
}

func copyJourney(j *TrackedJourney) *TrackedJourney {
	cp := *j
	cp.Profile.Devices = append([]string(nil), j.Profile.Devices...)
	cp.Locations = append([]TrackedLocation(nil), j.Locations...)
	cp.Interactions = make(map[string]InteractionRecord, len(j.Interactions))
	for k, v := range j.Interactions {
		cp.Interactions[k] = v
	}
	if j.EndedAt != nil {
		t := *j.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}
