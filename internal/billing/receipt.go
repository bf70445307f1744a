package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// ReceiptItem is one expense line re-expanded from a paid invoice.
type ReceiptItem struct {
	InvoiceID      int64           `json:"invoice_id"`
	InvoiceVersion int64           `json:"invoice_version"`
	ExpenseName    string          `json:"expense_name"`
	OriginalAmount float64         `json:"original_amount"`
	Currency       models.Currency `json:"currency"`
	BufferRate     float64         `json:"buffer_rate,omitempty"`
	Share          string          `json:"share"`
	AmountPaid     float64         `json:"amount_paid"`
}

// ReceiptData is the fully computed content of a receipt.
type ReceiptData struct {
	TripName          string            `json:"trip_name"`
	ParticipantID     int64             `json:"participant_id"`
	ParticipantName   string            `json:"participant_name"`
	ReceiptID         int64             `json:"receipt_id,omitempty"`
	ReceiptNumber     int64             `json:"receipt_number,omitempty"`
	GeneratedAt       time.Time         `json:"generated_at"`
	PaymentMethod     string            `json:"payment_method,omitempty"`
	Items             []ReceiptItem     `json:"items"`
	Total             float64           `json:"total"`
	Invoices          []*models.Invoice `json:"invoices"`
	HasUnpaidInvoices bool              `json:"has_unpaid_invoices"`
}

// receiptItems expands invoices into expense lines using live expense data.
// The total adds the unrounded shares and is rounded once.
func (e *Engine) receiptItems(ctx context.Context, invoices []*models.Invoice) ([]ReceiptItem, float64, error) {
	var items []ReceiptItem
	total := decimal.Zero
	for _, inv := range invoices {
		expenses, err := e.store.ListInvoiceExpenses(ctx, inv.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list invoice %d expenses: %w", inv.ID, err)
		}
		for _, exp := range expenses {
			line, err := invoiceItem(exp)
			if err != nil {
				return nil, 0, err
			}
			items = append(items, ReceiptItem{
				InvoiceID:      inv.ID,
				InvoiceVersion: inv.Version,
				ExpenseName:    line.Name,
				OriginalAmount: line.OriginalAmount,
				Currency:       line.Currency,
				BufferRate:     line.BufferRate,
				Share:          line.Share,
				AmountPaid:     line.ShareTHB,
			})
			exact, err := calculator.ExactExpenseShare(exp)
			if err != nil {
				return nil, 0, fmt.Errorf("expense %d: %w", exp.ID, err)
			}
			total = total.Add(exact)
		}
	}
	return items, round2(total), nil
}

// PreviewReceipt computes a receipt over all of the participant's unpaid
// invoices. It never writes.
func (e *Engine) PreviewReceipt(ctx context.Context, tripID string, participantID int64) (*ReceiptData, error) {
	p, err := e.store.GetParticipant(ctx, tripID, participantID)
	if err != nil {
		return nil, err
	}
	unpaid, err := e.store.ListUnpaidInvoices(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid invoices: %w", err)
	}
	items, total, err := e.receiptItems(ctx, unpaid)
	if err != nil {
		return nil, err
	}

	return &ReceiptData{
		TripName:          e.tripName(ctx, tripID),
		ParticipantID:     p.ID,
		ParticipantName:   p.Name,
		GeneratedAt:       e.now(),
		Items:             items,
		Total:             total,
		Invoices:          unpaid,
		HasUnpaidInvoices: len(unpaid) > 0,
	}, nil
}

// CommitReceipt records payment of the selected unpaid invoices. Selected
// ids that are not unpaid invoices of this participant are ignored; if
// none remain the call fails with ErrNoUnpaidInvoices.
func (e *Engine) CommitReceipt(ctx context.Context, tripID string, participantID int64, invoiceIDs []int64, paymentMethod string) (*models.Receipt, error) {
	p, err := e.store.GetParticipant(ctx, tripID, participantID)
	if err != nil {
		return nil, err
	}
	unpaid, err := e.store.ListUnpaidInvoices(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid invoices: %w", err)
	}

	wanted := make(map[int64]bool, len(invoiceIDs))
	for _, id := range invoiceIDs {
		wanted[id] = true
	}
	var selected []*models.Invoice
	for _, inv := range unpaid {
		if wanted[inv.ID] {
			selected = append(selected, inv)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoUnpaidInvoices
	}

	_, total, err := e.receiptItems(ctx, selected)
	if err != nil {
		return nil, err
	}

	r := &models.Receipt{
		TripID:          tripID,
		ParticipantID:   participantID,
		ParticipantName: p.Name,
		TotalTHB:        total,
		PaymentMethod:   paymentMethod,
		CreatedAt:       e.now().Unix(),
	}
	for _, inv := range selected {
		r.InvoiceIDs = append(r.InvoiceIDs, inv.ID)
		r.InvoiceVersions = append(r.InvoiceVersions, inv.Version)
	}

	if err := e.store.CreateReceipt(ctx, r); err != nil {
		if errors.Is(err, storage.ErrAlreadyClaimed) {
			slog.WarnContext(ctx, "Receipt commit lost claim race", "trip_id", tripID, "participant_id", participantID, "error", err)
			return nil, ErrNoUnpaidInvoices
		}
		return nil, fmt.Errorf("failed to create receipt: %w", err)
	}

	e.emit(ctx, Event{
		Type:          EventReceiptCommitted,
		TripID:        tripID,
		ParticipantID: participantID,
		RecordID:      r.ID,
		AmountTHB:     r.TotalTHB,
	})
	return r, nil
}

// GetReceiptDetail rebuilds a committed receipt's lines from the current
// expense data. Total is the stored snapshot.
func (e *Engine) GetReceiptDetail(ctx context.Context, tripID string, receiptID int64) (*ReceiptData, error) {
	r, err := e.store.GetReceipt(ctx, tripID, receiptID)
	if err != nil {
		return nil, err
	}
	invoices, err := e.store.ListReceiptInvoices(ctx, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipt invoices: %w", err)
	}
	items, _, err := e.receiptItems(ctx, invoices)
	if err != nil {
		return nil, err
	}

	return &ReceiptData{
		TripName:          e.tripName(ctx, tripID),
		ParticipantID:     r.ParticipantID,
		ParticipantName:   r.ParticipantName,
		ReceiptID:         r.ID,
		ReceiptNumber:     r.ReceiptNumber,
		GeneratedAt:       time.Unix(r.CreatedAt, 0),
		PaymentMethod:     r.PaymentMethod,
		Items:             items,
		Total:             r.TotalTHB,
		Invoices:          invoices,
		HasUnpaidInvoices: false,
	}, nil
}

// DeleteReceipt voids a receipt. Its invoices become unpaid again.
func (e *Engine) DeleteReceipt(ctx context.Context, tripID string, receiptID int64) error {
	r, err := e.store.GetReceipt(ctx, tripID, receiptID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteReceipt(ctx, tripID, receiptID); err != nil {
		return err
	}
	e.emit(ctx, Event{
		Type:          EventReceiptVoided,
		TripID:        tripID,
		ParticipantID: r.ParticipantID,
		RecordID:      r.ID,
		AmountTHB:     r.TotalTHB,
	})
	return nil
}

// ListReceipts returns the trip's receipts, newest first.
func (e *Engine) ListReceipts(ctx context.Context, tripID string) ([]*models.Receipt, error) {
	if _, err := e.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return e.store.ListReceipts(ctx, tripID)
}

// ReceiptHistory returns one participant's receipts in number order.
func (e *Engine) ReceiptHistory(ctx context.Context, tripID string, participantID int64) ([]*models.Receipt, error) {
	if _, err := e.store.GetParticipant(ctx, tripID, participantID); err != nil {
		return nil, err
	}
	return e.store.ListParticipantReceipts(ctx, participantID)
}
