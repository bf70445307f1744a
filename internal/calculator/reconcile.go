package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
)

// CollectedItem is one expense's upfront-collected share for a participant.
type CollectedItem struct {
	ExpenseID      int64           `json:"expense_id"`
	ExpenseName    string          `json:"expense_name"`
	OriginalAmount float64         `json:"original_amount"`
	Currency       models.Currency `json:"currency"`
	BufferRate     float64         `json:"buffer_rate,omitempty"` // zero for THB expenses
	Share          string          `json:"share"`
	CollectedTHB   float64         `json:"collected_thb"`
}

// ActualItem is one realized payment's share for a participant.
type ActualItem struct {
	ExpenseID    int64           `json:"expense_id"`
	ExpenseName  string          `json:"expense_name"`
	PaidAmount   float64         `json:"paid_amount"`
	PaidCurrency models.Currency `json:"paid_currency"`
	ActualTHB    float64         `json:"actual_thb"`
	Share        string          `json:"share"`
	CostTHB      float64         `json:"your_cost_thb"`
}

// Reconciliation compares what a participant paid upfront with what the
// expenses actually cost.
type Reconciliation struct {
	CollectedItems []CollectedItem `json:"collected_items"`
	ActualItems    []ActualItem    `json:"actual_items"`
	TotalCollected float64         `json:"total_collected"`
	TotalActual    float64         `json:"total_actual"`

	// RefundAmount is TotalCollected - TotalActual. Positive means the
	// participant is owed money back; negative means they owe more.
	RefundAmount float64 `json:"refund_amount"`
}

// Reconcile computes a participant's refund or deficit.
//
// Collected shares cover every expense the participant shares, invoiced or
// not. Actual shares cover only expenses whose payment has been logged.
// Totals add the unrounded shares and are rounded once, so they can differ
// from the sum of the displayed lines by a few satang. The result is a live
// projection and is never stored.
func Reconcile(expenses []models.ParticipantExpense, actuals []models.ActualLine) (*Reconciliation, error) {
	r := &Reconciliation{
		CollectedItems: make([]CollectedItem, 0, len(expenses)),
		ActualItems:    make([]ActualItem, 0, len(actuals)),
	}

	collected := decimal.Zero
	for _, e := range expenses {
		share, err := ExactExpenseShare(e)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", e.ID, err)
		}
		item := CollectedItem{
			ExpenseID:      e.ID,
			ExpenseName:    e.Name,
			OriginalAmount: e.Amount,
			Currency:       e.Currency,
			Share:          ShareLabel(e.TotalParticipants),
			CollectedTHB:   Round(share),
		}
		if e.Currency == models.CurrencyJPY {
			item.BufferRate = e.BufferRate
		}
		r.CollectedItems = append(r.CollectedItems, item)
		collected = collected.Add(share)
	}

	actual := decimal.Zero
	for _, a := range actuals {
		cost, err := exactActualShare(a.Actual.THB, a.TotalParticipants)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", a.ExpenseID, err)
		}
		r.ActualItems = append(r.ActualItems, ActualItem{
			ExpenseID:    a.ExpenseID,
			ExpenseName:  a.ExpenseName,
			PaidAmount:   a.Actual.Amount,
			PaidCurrency: a.Actual.Currency,
			ActualTHB:    a.Actual.THB,
			Share:        ShareLabel(a.TotalParticipants),
			CostTHB:      Round(cost),
		})
		actual = actual.Add(cost)
	}

	r.TotalCollected = Round(collected)
	r.TotalActual = Round(actual)
	r.RefundAmount = Round(collected.Sub(actual))
	return r, nil
}
