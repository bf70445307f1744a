package billing

import "errors"

// Expected "nothing to do" outcomes. Callers surface them as user-actionable
// messages; they are not faults.
var (
	ErrNoNewExpenses      = errors.New("no new expenses to invoice")
	ErrNoMatchingExpenses = errors.New("no matching expenses found")
	ErrNoUnpaidInvoices   = errors.New("no matching unpaid invoices found for selection")
)

// ErrInvalidInput is returned for malformed caller input such as an empty
// name or a negative amount.
var ErrInvalidInput = errors.New("invalid input")
