package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
)

// ExpenseInput holds the editable fields of an expense.
type ExpenseInput struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	BufferRate float64 `json:"buffer_rate"`

	// ParticipantIDs must name at least one participant of the trip.
	ParticipantIDs []int64 `json:"participant_ids"`
}

// ExpenseView is an expense with its computed collection amounts.
type ExpenseView struct {
	*models.Expense
	CollectedTHB float64 `json:"collected_thb"`
	PerPersonTHB float64 `json:"per_person_thb"`
	Invoiced     bool    `json:"is_invoiced"`
}

// PaymentInput is a real-world payment to log against an expense.
type PaymentInput struct {
	Date     string  `json:"actual_date"`
	Method   string  `json:"actual_method"`
	Amount   float64 `json:"actual_amount"`
	Currency string  `json:"actual_currency"`
	THB      float64 `json:"actual_thb"`
}

// validateExpense checks input before anything is written. An expense that
// could not be split is rejected with calculator.ErrInvalidExpenseState.
func (e *Engine) validateExpense(ctx context.Context, tripID string, in ExpenseInput) (*models.Expense, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: expense name is required", ErrInvalidInput)
	}
	if in.Amount < 0 {
		return nil, fmt.Errorf("%w: amount %v", ErrInvalidInput, in.Amount)
	}
	currency := models.Currency(strings.ToUpper(strings.TrimSpace(in.Currency)))
	if !currency.Valid() {
		return nil, fmt.Errorf("%w: unsupported currency %q", calculator.ErrInvalidExpenseState, in.Currency)
	}

	seen := make(map[int64]bool, len(in.ParticipantIDs))
	var pids []int64
	for _, id := range in.ParticipantIDs {
		if !seen[id] {
			seen[id] = true
			pids = append(pids, id)
		}
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("%w: expense needs at least one participant", calculator.ErrInvalidExpenseState)
	}

	rate := in.BufferRate
	if rate <= 0 {
		settings, err := e.store.GetSettings(ctx, tripID)
		if err != nil {
			return nil, err
		}
		rate = settings.DefaultBufferRate
	}

	return &models.Expense{
		TripID:         tripID,
		Name:           name,
		Amount:         in.Amount,
		Currency:       currency,
		BufferRate:     rate,
		ParticipantIDs: pids,
	}, nil
}

// CreateExpense adds a pending expense shared by the given participants.
func (e *Engine) CreateExpense(ctx context.Context, tripID string, in ExpenseInput) (*ExpenseView, error) {
	exp, err := e.validateExpense(ctx, tripID, in)
	if err != nil {
		return nil, err
	}
	exp.CreatedAt = e.now().Unix()
	if err := e.store.CreateExpense(ctx, exp); err != nil {
		return nil, err
	}
	return e.GetExpense(ctx, tripID, exp.ID)
}

// UpdateExpense edits an expense. Committed invoices keep their stored
// totals; their line detail will reflect the new values.
func (e *Engine) UpdateExpense(ctx context.Context, tripID string, expenseID int64, in ExpenseInput) (*ExpenseView, error) {
	exp, err := e.validateExpense(ctx, tripID, in)
	if err != nil {
		return nil, err
	}
	exp.ID = expenseID
	if err := e.store.UpdateExpense(ctx, exp); err != nil {
		return nil, err
	}
	return e.GetExpense(ctx, tripID, expenseID)
}

// GetExpense returns one expense with its computed amounts.
func (e *Engine) GetExpense(ctx context.Context, tripID string, expenseID int64) (*ExpenseView, error) {
	exp, err := e.store.GetExpense(ctx, tripID, expenseID)
	if err != nil {
		return nil, err
	}
	return expenseView(exp)
}

// ListExpenses returns the trip's expenses with computed amounts.
func (e *Engine) ListExpenses(ctx context.Context, tripID string) ([]*ExpenseView, error) {
	if _, err := e.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	expenses, err := e.store.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, err
	}
	views := make([]*ExpenseView, 0, len(expenses))
	for _, exp := range expenses {
		v, err := expenseView(exp)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func expenseView(exp *models.Expense) (*ExpenseView, error) {
	collected, err := calculator.CollectedTHB(exp.Amount, exp.Currency, exp.BufferRate)
	if err != nil {
		return nil, fmt.Errorf("expense %d: %w", exp.ID, err)
	}
	v := &ExpenseView{Expense: exp, CollectedTHB: round2(collected), Invoiced: exp.IsInvoiced()}
	// Expenses whose participants were all deleted have nobody to split with.
	if n := len(exp.ParticipantIDs); n > 0 {
		v.PerPersonTHB, err = calculator.Share(exp.Amount, exp.Currency, exp.BufferRate, n)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", exp.ID, err)
		}
	}
	return v, nil
}

// LogPayment records the real payment for an expense and marks it
// collected. All actual fields and the status change together.
func (e *Engine) LogPayment(ctx context.Context, tripID string, expenseID int64, in PaymentInput) (*ExpenseView, error) {
	currency := models.Currency(strings.ToUpper(strings.TrimSpace(in.Currency)))
	if !currency.Valid() {
		return nil, fmt.Errorf("%w: unsupported payment currency %q", calculator.ErrInvalidExpenseState, in.Currency)
	}
	if in.Amount < 0 || in.THB < 0 {
		return nil, fmt.Errorf("%w: payment amounts must not be negative", ErrInvalidInput)
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = e.now().Format("2006-01-02")
	}

	actual := models.Actual{
		Date:     date,
		Method:   strings.TrimSpace(in.Method),
		Amount:   in.Amount,
		Currency: currency,
		THB:      in.THB,
	}
	if err := e.store.LogPayment(ctx, tripID, expenseID, actual); err != nil {
		return nil, err
	}

	e.emit(ctx, Event{
		Type:      EventPaymentLogged,
		TripID:    tripID,
		RecordID:  expenseID,
		AmountTHB: in.THB,
	})
	return e.GetExpense(ctx, tripID, expenseID)
}

// DeleteExpense removes an expense no invoice claims.
func (e *Engine) DeleteExpense(ctx context.Context, tripID string, expenseID int64) error {
	if err := e.store.DeleteExpense(ctx, tripID, expenseID); err != nil {
		return err
	}
	e.emit(ctx, Event{Type: EventExpenseDeleted, TripID: tripID, RecordID: expenseID})
	return nil
}
