package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmynk/tripledger/internal/models"
)

// CreateTrip persists a new trip together with its settings row.
func (s *SQLiteStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO trips (id, name, created_at) VALUES (?, ?, ?)",
			trip.ID, trip.Name, trip.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert trip: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO settings (trip_id, default_buffer_rate, trip_name) VALUES (?, ?, ?)",
			trip.ID, s.defaultBufferRate, trip.Name,
		); err != nil {
			return fmt.Errorf("failed to insert settings: %w", err)
		}
		return nil
	})
}

// GetTrip retrieves a trip by ID.
func (s *SQLiteStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM trips WHERE id = ?", tripID,
	).Scan(&trip.ID, &trip.Name, &trip.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound("trip", tripID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// ListTrips returns all trips, newest first.
func (s *SQLiteStore) ListTrips(ctx context.Context) ([]*models.Trip, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM trips ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip := &models.Trip{}
		if err := rows.Scan(&trip.ID, &trip.Name, &trip.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// ListTripSummaries returns every trip with its record counts.
func (s *SQLiteStore) ListTripSummaries(ctx context.Context) ([]*models.TripSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at,
		       (SELECT COUNT(*) FROM participants p WHERE p.trip_id = t.id),
		       (SELECT COUNT(*) FROM expenses e WHERE e.trip_id = t.id),
		       (SELECT COUNT(*) FROM invoices i WHERE i.trip_id = t.id),
		       (SELECT COUNT(*) FROM receipts r WHERE r.trip_id = t.id)
		FROM trips t
		ORDER BY t.created_at DESC, t.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.TripSummary
	for rows.Next() {
		ts := &models.TripSummary{}
		if err := rows.Scan(&ts.ID, &ts.Name, &ts.CreatedAt,
			&ts.Participants, &ts.Expenses, &ts.Invoices, &ts.Receipts); err != nil {
			return nil, fmt.Errorf("failed to scan trip summary: %w", err)
		}
		summaries = append(summaries, ts)
	}
	return summaries, rows.Err()
}

// GetSettings returns the trip's settings, creating the row on first access.
func (s *SQLiteStore) GetSettings(ctx context.Context, tripID string) (*models.Settings, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO settings (trip_id, default_buffer_rate, trip_name) VALUES (?, ?, ?)",
		tripID, s.defaultBufferRate, trip.Name,
	); err != nil {
		return nil, fmt.Errorf("failed to create settings: %w", err)
	}

	settings := &models.Settings{}
	if err := s.db.QueryRowContext(ctx,
		"SELECT trip_id, default_buffer_rate, trip_name FROM settings WHERE trip_id = ?", tripID,
	).Scan(&settings.TripID, &settings.DefaultBufferRate, &settings.TripName); err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings writes both settings fields. The trip's own name follows
// the display name.
func (s *SQLiteStore) UpdateSettings(ctx context.Context, settings *models.Settings) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE trips SET name = ? WHERE id = ?", settings.TripName, settings.TripID)
		if err != nil {
			return fmt.Errorf("failed to update trip: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return notFound("trip", settings.TripID)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (trip_id, default_buffer_rate, trip_name) VALUES (?, ?, ?)
			ON CONFLICT(trip_id) DO UPDATE SET
			    default_buffer_rate = excluded.default_buffer_rate,
			    trip_name = excluded.trip_name`,
			settings.TripID, settings.DefaultBufferRate, settings.TripName,
		); err != nil {
			return fmt.Errorf("failed to update settings: %w", err)
		}
		return nil
	})
}
