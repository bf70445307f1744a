package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/tripledger/internal/models"
)

// AddParticipant adds a named participant to the trip.
func (e *Engine) AddParticipant(ctx context.Context, tripID, name string) (*models.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: participant name is required", ErrInvalidInput)
	}
	p := &models.Participant{TripID: tripID, Name: name, CreatedAt: e.now().Unix()}
	if err := e.store.CreateParticipant(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListParticipants returns the trip's participants ordered by name.
func (e *Engine) ListParticipants(ctx context.Context, tripID string) ([]*models.Participant, error) {
	if _, err := e.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return e.store.ListParticipants(ctx, tripID)
}

// FindParticipant looks a participant up by name.
func (e *Engine) FindParticipant(ctx context.Context, tripID, name string) (*models.Participant, error) {
	return e.store.GetParticipantByName(ctx, tripID, strings.TrimSpace(name))
}

// DeleteParticipant removes a participant together with their expense
// links, refunds, invoices and receipts.
func (e *Engine) DeleteParticipant(ctx context.Context, tripID string, participantID int64) error {
	return e.store.DeleteParticipant(ctx, tripID, participantID)
}

// AddRefund records a manual refund handed to a participant.
func (e *Engine) AddRefund(ctx context.Context, tripID string, participantID int64, amountTHB float64, notes string) (*models.Refund, error) {
	r := &models.Refund{
		TripID:        tripID,
		ParticipantID: participantID,
		AmountTHB:     amountTHB,
		Notes:         strings.TrimSpace(notes),
		CreatedAt:     e.now().Unix(),
	}
	if err := e.store.CreateRefund(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRefunds returns the trip's refund annotations, newest first.
func (e *Engine) ListRefunds(ctx context.Context, tripID string) ([]*models.Refund, error) {
	if _, err := e.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return e.store.ListRefunds(ctx, tripID)
}

// DeleteRefund removes a refund annotation.
func (e *Engine) DeleteRefund(ctx context.Context, tripID string, refundID int64) error {
	return e.store.DeleteRefund(ctx, tripID, refundID)
}
