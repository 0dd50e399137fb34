package journey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the journey tables. Applied by Migrate; kept here so
// deployments without a migration runner can bootstrap from the binary.
const Schema = `
CREATE TABLE IF NOT EXISTS tracked_journey (
	id         TEXT PRIMARY KEY,
	trip_id    TEXT NOT NULL,
	profile    JSONB NOT NULL DEFAULT '{}',
	end_reason TEXT NOT NULL DEFAULT '',
	ended_at   TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS tracked_journey_active_trip_idx ON tracked_journey (trip_id) WHERE end_reason = '';

CREATE TABLE IF NOT EXISTS tracked_location (
	journey_id       TEXT NOT NULL REFERENCES tracked_journey (id),
	seq              BIGINT GENERATED ALWAYS AS IDENTITY,
	ts               TIMESTAMPTZ NOT NULL,
	lat              DOUBLE PRECISION NOT NULL,
	lon              DOUBLE PRECISION NOT NULL,
	speed            DOUBLE PRECISION,
	trip_status      TEXT NOT NULL,
	deviation_meters DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (journey_id, seq)
);

CREATE TABLE IF NOT EXISTS journey_interaction (
	journey_id TEXT NOT NULL REFERENCES tracked_journey (id),
	key        TEXT NOT NULL,
	state      TEXT NOT NULL,
	payload    JSONB,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (journey_id, key)
);
`

// PostgresStore is the durable Store used in production. Idempotency
// transitions are row-level compare-and-swap updates, so concurrent updates
// for one journey cannot both win a dispatch race.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a store to an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("journey: apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, j *TrackedJourney) error {
	profile, err := json.Marshal(j.Profile)
	if err != nil {
		return fmt.Errorf("journey: encode profile for %s: %w", j.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tracked_journey (id, trip_id, profile, created_at) VALUES ($1, $2, $3, $4)`,
		j.ID, j.TripID, profile, j.CreatedAt)
	if err != nil {
		// The partial unique index on active trips turns a lost create race
		// into a constraint violation.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveExists
		}
		return fmt.Errorf("journey: create %s: %w", j.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, journeyID string) (*TrackedJourney, error) {
	j := &TrackedJourney{Interactions: map[string]InteractionRecord{}}
	var endReason string
	var profile []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, trip_id, profile, end_reason, ended_at, created_at FROM tracked_journey WHERE id = $1`,
		journeyID).Scan(&j.ID, &j.TripID, &profile, &endReason, &j.EndedAt, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journey: get %s: %w", journeyID, err)
	}
	if err := json.Unmarshal(profile, &j.Profile); err != nil {
		return nil, fmt.Errorf("journey: decode profile for %s: %w", journeyID, err)
	}
	j.EndReason = TerminationReason(endReason)
	if err := s.loadLocations(ctx, j); err != nil {
		return nil, err
	}
	if err := s.loadInteractions(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *PostgresStore) GetActiveByTripID(ctx context.Context, tripID string) (*TrackedJourney, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM tracked_journey WHERE trip_id = $1 AND end_reason = '' ORDER BY created_at DESC LIMIT 1`,
		tripID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journey: get active for trip %s: %w", tripID, err)
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) AppendLocation(ctx context.Context, journeyID string, loc TrackedLocation) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tracked_location (journey_id, ts, lat, lon, speed, trip_status, deviation_meters)
		 SELECT id, $2, $3, $4, $5, $6, $7 FROM tracked_journey WHERE id = $1 AND end_reason = ''`,
		journeyID, loc.Timestamp, loc.Lat, loc.Lon, loc.Speed, string(loc.Status), loc.DeviationMeters)
	if err != nil {
		return fmt.Errorf("journey: append location to %s: %w", journeyID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.notFoundOrEnded(ctx, journeyID)
	}
	return nil
}

func (s *PostgresStore) TransitionInteraction(ctx context.Context, journeyID, key string, prev, next InteractionState, payload []byte) error {
	var tag interface{ RowsAffected() int64 }
	var err error
	if prev == "" {
		tag, err = s.pool.Exec(ctx,
			`INSERT INTO journey_interaction (journey_id, key, state, payload, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (journey_id, key) DO NOTHING`,
			journeyID, key, string(next), payload)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE journey_interaction SET state = $4, payload = $5, updated_at = now()
			 WHERE journey_id = $1 AND key = $2 AND state = $3`,
			journeyID, key, string(prev), string(next), payload)
	}
	if err != nil {
		return fmt.Errorf("journey: interaction %s/%s: %w", journeyID, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInteractionConflict
	}
	return nil
}

func (s *PostgresStore) End(ctx context.Context, journeyID string, reason TerminationReason, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracked_journey SET end_reason = $2, ended_at = $3 WHERE id = $1 AND end_reason = ''`,
		journeyID, string(reason), at)
	if err != nil {
		return fmt.Errorf("journey: end %s: %w", journeyID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.notFoundOrEnded(ctx, journeyID)
	}
	return nil
}

func (s *PostgresStore) notFoundOrEnded(ctx context.Context, journeyID string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tracked_journey WHERE id = $1)`, journeyID).Scan(&exists); err != nil {
		return fmt.Errorf("journey: check %s: %w", journeyID, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrEnded
}

func (s *PostgresStore) loadLocations(ctx context.Context, j *TrackedJourney) error {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, lat, lon, speed, trip_status, deviation_meters
		 FROM tracked_location WHERE journey_id = $1 ORDER BY seq`,
		j.ID)
	if err != nil {
		return fmt.Errorf("journey: load locations for %s: %w", j.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var loc TrackedLocation
		var status string
		if err := rows.Scan(&loc.Timestamp, &loc.Lat, &loc.Lon, &loc.Speed, &status, &loc.DeviationMeters); err != nil {
			return err
		}
		loc.Status = TripStatus(status)
		j.Locations = append(j.Locations, loc)
	}
	return rows.Err()
}

func (s *PostgresStore) loadInteractions(ctx context.Context, j *TrackedJourney) error {
	rows, err := s.pool.Query(ctx,
		`SELECT key, state, payload, updated_at FROM journey_interaction WHERE journey_id = $1`,
		j.ID)
	if err != nil {
		return fmt.Errorf("journey: load interactions for %s: %w", j.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, state string
		var rec InteractionRecord
		if err := rows.Scan(&key, &state, &rec.Payload, &rec.UpdatedAt); err != nil {
			return err
		}
		rec.State = InteractionState(state)
		j.Interactions[key] = rec
	}
	return rows.Err()
}
