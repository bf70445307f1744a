package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/tripledger/internal/calculator"
)

// RefundData is a participant's refund statement: upfront collections
// against realized costs.
type RefundData struct {
	TripName        string    `json:"trip_name"`
	ParticipantID   int64     `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	GeneratedAt     time.Time `json:"generated_at"`

	calculator.Reconciliation
}

// ReconciliationItem is one participant's row of the trip summary.
type ReconciliationItem struct {
	ParticipantID   int64   `json:"participant_id"`
	ParticipantName string  `json:"participant_name"`
	TotalCollected  float64 `json:"total_collected"`
	TotalActual     float64 `json:"total_actual"`
	SurplusDeficit  float64 `json:"surplus_deficit"`
}

// ComputeRefund compares everything collected from the participant with
// their share of logged payments. It ignores invoices and receipts and is
// recomputed from live data on every call.
func (e *Engine) ComputeRefund(ctx context.Context, tripID string, participantID int64) (*RefundData, error) {
	p, err := e.store.GetParticipant(ctx, tripID, participantID)
	if err != nil {
		return nil, err
	}

	expenses, err := e.store.ListExpensesForParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	actuals, err := e.store.ListActuals(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actuals: %w", err)
	}

	rec, err := calculator.Reconcile(expenses, actuals)
	if err != nil {
		return nil, err
	}

	return &RefundData{
		TripName:        e.tripName(ctx, tripID),
		ParticipantID:   p.ID,
		ParticipantName: p.Name,
		GeneratedAt:     e.now(),
		Reconciliation:  *rec,
	}, nil
}

// ListReconciliation runs ComputeRefund for every participant of the trip.
func (e *Engine) ListReconciliation(ctx context.Context, tripID string) ([]ReconciliationItem, error) {
	if _, err := e.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	participants, err := e.store.ListParticipants(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	items := make([]ReconciliationItem, 0, len(participants))
	for _, p := range participants {
		refund, err := e.ComputeRefund(ctx, tripID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("participant %d: %w", p.ID, err)
		}
		items = append(items, ReconciliationItem{
			ParticipantID:   p.ID,
			ParticipantName: p.Name,
			TotalCollected:  refund.TotalCollected,
			TotalActual:     refund.TotalActual,
			SurplusDeficit:  refund.RefundAmount,
		})
	}
	return items, nil
}
