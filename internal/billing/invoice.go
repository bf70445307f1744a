package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// InvoiceItem is one expense line on an invoice.
type InvoiceItem struct {
	ExpenseID      int64           `json:"expense_id"`
	Name           string          `json:"name"`
	OriginalAmount float64         `json:"original_amount"`
	Currency       models.Currency `json:"currency"`
	BufferRate     float64         `json:"buffer_rate,omitempty"`
	Share          string          `json:"share"`
	ShareTHB       float64         `json:"your_share_thb"`
}

// InvoiceData is the fully computed content of an invoice, either a
// preview of what would be billed now or the detail of a committed one.
type InvoiceData struct {
	TripName        string        `json:"trip_name"`
	ParticipantID   int64         `json:"participant_id"`
	ParticipantName string        `json:"participant_name"`
	InvoiceID       int64         `json:"invoice_id,omitempty"`
	Version         int64         `json:"version,omitempty"`
	GeneratedAt     time.Time     `json:"generated_at"`
	Items           []InvoiceItem `json:"items"`
	Total           float64       `json:"total"`
	HasNewExpenses  bool          `json:"has_new_expenses"`
}

func invoiceItem(e models.ParticipantExpense) (InvoiceItem, error) {
	share, err := calculator.ExpenseShare(e)
	if err != nil {
		return InvoiceItem{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	item := InvoiceItem{
		ExpenseID:      e.ID,
		Name:           e.Name,
		OriginalAmount: e.Amount,
		Currency:       e.Currency,
		Share:          calculator.ShareLabel(e.TotalParticipants),
		ShareTHB:       share,
	}
	if e.Currency == models.CurrencyJPY {
		item.BufferRate = e.BufferRate
	}
	return item, nil
}

func invoiceItems(expenses []models.ParticipantExpense) ([]InvoiceItem, float64, error) {
	items := make([]InvoiceItem, 0, len(expenses))
	shares := make([]float64, 0, len(expenses))
	for _, e := range expenses {
		item, err := invoiceItem(e)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
		shares = append(shares, item.ShareTHB)
	}
	return items, calculator.Sum(shares...), nil
}

// PreviewInvoice computes what a new invoice for the participant would
// contain: every linked expense not yet claimed by one of the
// participant's invoices. It never writes.
func (e *Engine) PreviewInvoice(ctx context.Context, tripID string, participantID int64) (*InvoiceData, error) {
	p, err := e.store.GetParticipant(ctx, tripID, participantID)
	if err != nil {
		return nil, err
	}

	expenses, err := e.store.ListExpensesForParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	invoiced, err := e.store.ListInvoicedExpenseIDs(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoiced expenses: %w", err)
	}

	var fresh []models.ParticipantExpense
	for _, exp := range expenses {
		if !invoiced[exp.ID] {
			fresh = append(fresh, exp)
		}
	}

	items, total, err := invoiceItems(fresh)
	if err != nil {
		return nil, err
	}

	return &InvoiceData{
		TripName:        e.tripName(ctx, tripID),
		ParticipantID:   p.ID,
		ParticipantName: p.Name,
		GeneratedAt:     e.now(),
		Items:           items,
		Total:           total,
		HasNewExpenses:  len(items) > 0,
	}, nil
}

// CommitInvoice bills the participant's uninvoiced expenses. When
// expenseIDs is non-empty only those uninvoiced expenses are included.
// The invoice total is the sum of the included line shares at this moment.
func (e *Engine) CommitInvoice(ctx context.Context, tripID string, participantID int64, expenseIDs []int64) (*models.Invoice, error) {
	preview, err := e.PreviewInvoice(ctx, tripID, participantID)
	if err != nil {
		return nil, err
	}
	if !preview.HasNewExpenses {
		return nil, ErrNoNewExpenses
	}

	items := preview.Items
	if len(expenseIDs) > 0 {
		wanted := make(map[int64]bool, len(expenseIDs))
		for _, id := range expenseIDs {
			wanted[id] = true
		}
		var selected []InvoiceItem
		for _, item := range items {
			if wanted[item.ExpenseID] {
				selected = append(selected, item)
			}
		}
		if len(selected) == 0 {
			return nil, ErrNoMatchingExpenses
		}
		items = selected
	}

	inv := &models.Invoice{
		TripID:          tripID,
		ParticipantID:   participantID,
		ParticipantName: preview.ParticipantName,
		CreatedAt:       e.now().Unix(),
	}
	shares := make([]float64, 0, len(items))
	for _, item := range items {
		inv.ExpenseIDs = append(inv.ExpenseIDs, item.ExpenseID)
		shares = append(shares, item.ShareTHB)
	}
	inv.TotalTHB = calculator.Sum(shares...)

	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		if errors.Is(err, storage.ErrAlreadyClaimed) {
			slog.WarnContext(ctx, "Invoice commit lost claim race", "trip_id", tripID, "participant_id", participantID, "error", err)
			return nil, ErrNoNewExpenses
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	e.emit(ctx, Event{
		Type:          EventInvoiceCommitted,
		TripID:        tripID,
		ParticipantID: participantID,
		RecordID:      inv.ID,
		AmountTHB:     inv.TotalTHB,
	})
	return inv, nil
}

// GetInvoiceDetail rebuilds a committed invoice's lines from the current
// expense data. Total is the stored snapshot, so it may differ from the
// sum of the lines if expenses were edited after invoicing.
func (e *Engine) GetInvoiceDetail(ctx context.Context, tripID string, invoiceID int64) (*InvoiceData, error) {
	inv, err := e.store.GetInvoice(ctx, tripID, invoiceID)
	if err != nil {
		return nil, err
	}
	expenses, err := e.store.ListInvoiceExpenses(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice expenses: %w", err)
	}
	items, _, err := invoiceItems(expenses)
	if err != nil {
		return nil, err
	}

	return &InvoiceData{
		TripName:        e.tripName(ctx, tripID),
		ParticipantID:   inv.ParticipantID,
		ParticipantName: inv.ParticipantName,
		InvoiceID:       inv.ID,
		Version:         inv.Version,
		GeneratedAt:     time.Unix(inv.CreatedAt, 0),
		Items:           items,
		Total:           inv.TotalTHB,
		HasNewExpenses:  len(items) > 0,
	}, nil
}

// DeleteInvoice removes an unpaid invoice and releases its expenses.
func (e *Engine) DeleteInvoice(ctx context.Context, tripID string, invoiceID int64) error {
	inv, err := e.store.GetInvoice(ctx, tripID, invoiceID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteInvoice(ctx, tripID, invoiceID); err != nil {
		return err
	}
	e.emit(ctx, Event{
		Type:          EventInvoiceDeleted,
		TripID:        tripID,
		ParticipantID: inv.ParticipantID,
		RecordID:      inv.ID,
		AmountTHB:     inv.TotalTHB,
	})
	return nil
}

// ListInvoices returns the trip's invoices, newest first, with paid status.
func (e *Engine) ListInvoices(ctx context.Context, tripID string) ([]*models.Invoice, error) {
	if _, err := e.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	return e.store.ListInvoices(ctx, tripID)
}

// InvoiceHistory returns one participant's invoices in version order.
func (e *Engine) InvoiceHistory(ctx context.Context, tripID string, participantID int64) ([]*models.Invoice, error) {
	if _, err := e.store.GetParticipant(ctx, tripID, participantID); err != nil {
		return nil, err
	}
	return e.store.ListParticipantInvoices(ctx, participantID)
}
