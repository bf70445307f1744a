package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
)

// OverviewStats summarizes a trip's billing records.
type OverviewStats struct {
	TotalInvoices       int     `json:"total_invoices"`
	TotalInvoicedAmount float64 `json:"total_invoiced_amount"`
	PaidInvoices        int     `json:"paid_invoices"`
	PaidAmount          float64 `json:"paid_amount"`
	UnpaidInvoices      int     `json:"unpaid_invoices"`
	UnpaidAmount        float64 `json:"unpaid_amount"`
	TotalReceipts       int     `json:"total_receipts"`
	TotalReceived       float64 `json:"total_received"`
}

// Dashboard holds the trip organizer's financial KPIs.
type Dashboard struct {
	// NetCashPosition is money received minus money paid out.
	NetCashPosition float64 `json:"net_cash_position"`

	// CollectionRatio is received / invoiced as a percentage, one decimal.
	CollectionRatio    float64 `json:"collection_ratio"`
	AccountsReceivable float64 `json:"accounts_receivable"`
	TotalInflow        float64 `json:"total_inflow"`
	TotalOutflow       float64 `json:"total_outflow"`
	TotalCommitted     float64 `json:"total_committed_spend"`

	TotalBudget   float64 `json:"total_budget"`
	PaidBudget    float64 `json:"paid_budget"`
	ActualPaid    float64 `json:"actual_paid"`
	PendingBudget float64 `json:"pending_budget"`

	// Savings is the planned cost of paid expenses minus what they
	// actually cost. Positive means under budget.
	Savings float64 `json:"savings"`
}

// CashFlowDay is one day of money in and out.
type CashFlowDay struct {
	Date       string  `json:"date"`
	Inflow     float64 `json:"inflow"`
	Outflow    float64 `json:"outflow"`
	Cumulative float64 `json:"cumulative"`
}

// Overview computes invoice and receipt counts and amounts for a trip.
func (e *Engine) Overview(ctx context.Context, tripID string) (*OverviewStats, error) {
	invoices, err := e.ListInvoices(ctx, tripID)
	if err != nil {
		return nil, err
	}
	receipts, err := e.store.ListReceipts(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	var invoiced, paid, received []float64
	stats := &OverviewStats{TotalInvoices: len(invoices), TotalReceipts: len(receipts)}
	for _, inv := range invoices {
		invoiced = append(invoiced, inv.TotalTHB)
		if inv.Status == models.InvoicePaid {
			stats.PaidInvoices++
			paid = append(paid, inv.TotalTHB)
		}
	}
	for _, r := range receipts {
		received = append(received, r.TotalTHB)
	}

	stats.TotalInvoicedAmount = calculator.Sum(invoiced...)
	stats.PaidAmount = calculator.Sum(paid...)
	stats.UnpaidInvoices = stats.TotalInvoices - stats.PaidInvoices
	stats.UnpaidAmount = calculator.Sub(stats.TotalInvoicedAmount, stats.PaidAmount)
	stats.TotalReceived = calculator.Sum(received...)
	return stats, nil
}

// Dashboard computes cash position, collection and budget performance.
func (e *Engine) Dashboard(ctx context.Context, tripID string) (*Dashboard, error) {
	overview, err := e.Overview(ctx, tripID)
	if err != nil {
		return nil, err
	}
	expenses, err := e.store.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var budget, paidBudget, pendingBudget, outflow decimal.Decimal
	for _, exp := range expenses {
		planned, err := calculator.CollectedTHB(exp.Amount, exp.Currency, exp.BufferRate)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", exp.ID, err)
		}
		budget = budget.Add(planned)
		if exp.Status == models.StatusCollected && exp.Actual != nil {
			paidBudget = paidBudget.Add(planned)
			outflow = outflow.Add(decimal.NewFromFloat(exp.Actual.THB))
		} else {
			pendingBudget = pendingBudget.Add(planned)
		}
	}

	inflow := decimal.NewFromFloat(overview.TotalReceived)
	invoiced := decimal.NewFromFloat(overview.TotalInvoicedAmount)

	d := &Dashboard{
		NetCashPosition: round2(inflow.Sub(outflow)),
		TotalInflow:     round2(inflow),
		TotalOutflow:    round2(outflow),
		TotalCommitted:  round2(invoiced),
		TotalBudget:     round2(budget),
		PaidBudget:      round2(paidBudget),
		ActualPaid:      round2(outflow),
		PendingBudget:   round2(pendingBudget),
		Savings:         round2(paidBudget.Sub(outflow)),
	}
	if invoiced.IsPositive() {
		d.CollectionRatio = inflow.Div(invoiced).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	}
	if receivable := invoiced.Sub(inflow); receivable.IsPositive() {
		d.AccountsReceivable = round2(receivable)
	}
	return d, nil
}

// CashFlow returns daily inflow (receipts, by creation day in UTC) and
// outflow (logged payments, by payment date) with a running balance.
func (e *Engine) CashFlow(ctx context.Context, tripID string) ([]CashFlowDay, error) {
	if _, err := e.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	receipts, err := e.store.ListReceipts(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	expenses, err := e.store.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	inflows := make(map[string]decimal.Decimal)
	outflows := make(map[string]decimal.Decimal)
	for _, r := range receipts {
		day := time.Unix(r.CreatedAt, 0).UTC().Format(time.DateOnly)
		inflows[day] = inflows[day].Add(decimal.NewFromFloat(r.TotalTHB))
	}
	for _, exp := range expenses {
		if exp.Actual == nil || exp.Actual.Date == "" {
			continue
		}
		outflows[exp.Actual.Date] = outflows[exp.Actual.Date].Add(decimal.NewFromFloat(exp.Actual.THB))
	}

	days := make([]string, 0, len(inflows)+len(outflows))
	for d := range inflows {
		days = append(days, d)
	}
	for d := range outflows {
		if _, ok := inflows[d]; !ok {
			days = append(days, d)
		}
	}
	sort.Strings(days)

	flow := make([]CashFlowDay, 0, len(days))
	running := decimal.Zero
	for _, d := range days {
		in, out := inflows[d], outflows[d]
		running = running.Add(in).Sub(out)
		flow = append(flow, CashFlowDay{
			Date:       d,
			Inflow:     round2(in),
			Outflow:    round2(out),
			Cumulative: round2(running),
		})
	}
	return flow, nil
}

// Breakdown sums each expense's cost by category: the realized THB when a
// payment is logged, otherwise the planned collection.
func (e *Engine) Breakdown(ctx context.Context, tripID string, classifier *calculator.Classifier) ([]calculator.CategoryTotal, error) {
	if _, err := e.store.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	expenses, err := e.store.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	if classifier == nil {
		classifier = calculator.DefaultClassifier
	}

	values := make([]calculator.CategoryValue, 0, len(expenses))
	for _, exp := range expenses {
		v := calculator.CategoryValue{Name: exp.Name}
		if exp.Actual != nil {
			v.Value = exp.Actual.THB
		} else {
			planned, err := calculator.CollectedTHB(exp.Amount, exp.Currency, exp.BufferRate)
			if err != nil {
				return nil, fmt.Errorf("expense %d: %w", exp.ID, err)
			}
			v.Value = planned.InexactFloat64()
		}
		values = append(values, v)
	}
	return classifier.Breakdown(values), nil
}

func round2(d decimal.Decimal) float64 {
	return calculator.Round(d)
}
