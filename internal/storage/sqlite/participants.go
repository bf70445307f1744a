package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// CreateParticipant persists a new participant. Names are unique within a
// trip; a clash returns storage.ErrDuplicateName.
func (s *SQLiteStore) CreateParticipant(ctx context.Context, p *models.Participant) error {
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tripExists(ctx, tx, p.TripID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			"INSERT INTO participants (trip_id, name, created_at) VALUES (?, ?, ?)",
			p.TripID, p.Name, p.CreatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%q: %w", p.Name, storage.ErrDuplicateName)
		}
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}

		p.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read participant id: %w", err)
		}
		return nil
	})
}

// GetParticipant retrieves a participant scoped to a trip.
func (s *SQLiteStore) GetParticipant(ctx context.Context, tripID string, participantID int64) (*models.Participant, error) {
	p := &models.Participant{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, trip_id, name, created_at FROM participants WHERE id = ? AND trip_id = ?",
		participantID, tripID,
	).Scan(&p.ID, &p.TripID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound("participant", participantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// GetParticipantByName retrieves a participant by exact name within a trip.
func (s *SQLiteStore) GetParticipantByName(ctx context.Context, tripID, name string) (*models.Participant, error) {
	p := &models.Participant{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, trip_id, name, created_at FROM participants WHERE trip_id = ? AND name = ?",
		tripID, name,
	).Scan(&p.ID, &p.TripID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound("participant", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// ListParticipants returns the trip's participants ordered by name.
func (s *SQLiteStore) ListParticipants(ctx context.Context, tripID string) ([]*models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, trip_id, name, created_at FROM participants WHERE trip_id = ? ORDER BY name, id",
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.ID, &p.TripID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// DeleteParticipant removes a participant. Foreign keys cascade the delete
// to expense links, refunds, invoices (and their items) and receipts.
func (s *SQLiteStore) DeleteParticipant(ctx context.Context, tripID string, participantID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM participants WHERE id = ? AND trip_id = ?", participantID, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("participant", participantID)
	}
	return nil
}

// CreateRefund records a manual refund annotation.
func (s *SQLiteStore) CreateRefund(ctx context.Context, r *models.Refund) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := participantExists(ctx, tx, r.TripID, r.ParticipantID); err != nil {
			return err
		}

		var notes any
		if r.Notes != "" {
			notes = r.Notes
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO refunds (trip_id, participant_id, amount_thb, notes, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.TripID, r.ParticipantID, r.AmountTHB, notes, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert refund: %w", err)
		}
		r.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read refund id: %w", err)
		}
		return nil
	})
}

// ListRefunds returns the trip's refund annotations, newest first.
func (s *SQLiteStore) ListRefunds(ctx context.Context, tripID string) ([]*models.Refund, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.trip_id, r.participant_id, p.name, r.amount_thb, r.notes, r.created_at
		FROM refunds r
		JOIN participants p ON p.id = r.participant_id
		WHERE r.trip_id = ?
		ORDER BY r.created_at DESC, r.id DESC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*models.Refund
	for rows.Next() {
		r := &models.Refund{}
		var notes sql.NullString
		if err := rows.Scan(&r.ID, &r.TripID, &r.ParticipantID, &r.ParticipantName,
			&r.AmountTHB, &notes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		r.Notes = notes.String
		refunds = append(refunds, r)
	}
	return refunds, rows.Err()
}

// DeleteRefund removes a refund annotation.
func (s *SQLiteStore) DeleteRefund(ctx context.Context, tripID string, refundID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM refunds WHERE id = ? AND trip_id = ?", refundID, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete refund: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("refund", refundID)
	}
	return nil
}

func tripExists(ctx context.Context, q queryer, tripID string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM trips WHERE id = ?", tripID).Scan(&one)
	if err == sql.ErrNoRows {
		return notFound("trip", tripID)
	}
	if err != nil {
		return fmt.Errorf("failed to check trip: %w", err)
	}
	return nil
}

func participantExists(ctx context.Context, q queryer, tripID string, participantID int64) error {
	var one int
	err := q.QueryRowContext(ctx,
		"SELECT 1 FROM participants WHERE id = ? AND trip_id = ?", participantID, tripID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return notFound("participant", participantID)
	}
	if err != nil {
		return fmt.Errorf("failed to check participant: %w", err)
	}
	return nil
}
