// Package audit persists billing events asynchronously to the events table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one persisted audit record.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	TripID    string          `json:"trip_id"`
	Type      string          `json:"event_type"`
	Data      json.RawMessage `json:"event_data"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventLogger stores and queries audit events.
type EventLogger interface {
	Save(ctx context.Context, e Event) error
	List(ctx context.Context, tripID, eventType string) ([]Event, error)
}

type sqlEventLogger struct {
	db *sql.DB
}

// NewSQLEventLogger stores events in the events table of db.
func NewSQLEventLogger(db *sql.DB) EventLogger {
	return &sqlEventLogger{db: db}
}

func (l *sqlEventLogger) Save(ctx context.Context, e Event) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events (id, trip_id, event_type, event_data, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID.String(), e.TripID, e.Type, string(e.Data), e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// List returns a trip's events, oldest first. An empty eventType matches all.
func (l *sqlEventLogger) List(ctx context.Context, tripID, eventType string) ([]Event, error) {
	query := `SELECT id, trip_id, event_type, event_data, created_at FROM events WHERE trip_id = ?`
	args := []any{tripID}
	if eventType != "" {
		query += ` AND event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e       Event
			id      string
			data    string
			created int64
		)
		if err := rows.Scan(&id, &e.TripID, &e.Type, &data, &created); err != nil {
			return events, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return events, fmt.Errorf("event %q: %w", id, err)
		}
		e.Data = json.RawMessage(data)
		e.CreatedAt = time.Unix(created, 0)
		events = append(events, e)
	}
	return events, rows.Err()
}
