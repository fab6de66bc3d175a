package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	audit "vehicle-sanctions/pkg/platform/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS lifecycle_events (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	category    TEXT NOT NULL,
	action      TEXT NOT NULL,
	vehicle_id  TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS lifecycle_events_vehicle_idx ON lifecycle_events (vehicle_id, seq);
`

// Store implements audit.Store on a lifecycle_events table. It is the
// durable event log used when Kafka is unreachable or not configured.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL event log.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the lifecycle_events table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure lifecycle_events schema: %w", err)
	}
	return nil
}

// Append writes one event. Re-appending an event with the same ID is a no-op,
// so a retried publish does not duplicate the log.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	event = audit.Prepare(ctx, event)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}

	query := `
		INSERT INTO lifecycle_events (id, category, action, vehicle_id, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Category),
		event.Action,
		event.VehicleID,
		event.Timestamp,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert lifecycle event: %w", err)
	}
	return nil
}

// ListByVehicle returns a vehicle's events in the order they were appended.
func (s *Store) ListByVehicle(ctx context.Context, vehicleID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM lifecycle_events
		WHERE vehicle_id = $1
		ORDER BY seq
	`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("query lifecycle events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan lifecycle event: %w", err)
		}
		var e audit.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode lifecycle event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lifecycle events: %w", err)
	}
	return events, nil
}

// Truncate removes every event. Intended for tests.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE lifecycle_events`)
	return err
}
