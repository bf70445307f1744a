package models

// Currency is the currency an expense was quoted in.
type Currency string

const (
	CurrencyJPY Currency = "JPY"
	CurrencyTHB Currency = "THB"
)

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool {
	return c == CurrencyJPY || c == CurrencyTHB
}

// ExpenseStatus is the lifecycle state of an expense.
//
// The only transition is pending -> collected, performed by logging a
// payment. There is no reverse transition.
type ExpenseStatus string

const (
	StatusPending   ExpenseStatus = "pending"
	StatusCollected ExpenseStatus = "collected"
)

// Expense is a shared cost split equally among its participants.
type Expense struct {
	ID     int64  `json:"id"`
	TripID string `json:"trip_id"`
	Name   string `json:"name"`

	// Amount is expressed in Currency.
	Amount   float64  `json:"amount"`
	Currency Currency `json:"currency"`

	// BufferRate converts JPY to an upfront THB collection target
	// (amount * rate). It is ignored for THB expenses.
	BufferRate float64 `json:"buffer_rate"`

	Status    ExpenseStatus `json:"status"`
	CreatedAt int64         `json:"created_at"`

	// ParticipantIDs lists who shares this expense. It is never empty when
	// written, but deleting a participant removes their links, so an expense
	// can be left with nobody to split it. Such an expense has no per-person
	// share and appears on no invoice.
	ParticipantIDs []int64 `json:"participant_ids"`

	// ParticipantNames is populated on reads, in the same order as ParticipantIDs.
	ParticipantNames []string `json:"participant_names"`

	// InvoiceVersions lists the versions of invoices claiming this expense.
	// Populated by list queries only.
	InvoiceVersions []int64 `json:"invoice_versions"`

	// Actual is set if and only if Status is StatusCollected.
	Actual *Actual `json:"actual,omitempty"`
}

// IsInvoiced reports whether any invoice claims this expense.
func (e *Expense) IsInvoiced() bool {
	return len(e.InvoiceVersions) > 0
}

// Actual is the real-world payment logged against an expense.
type Actual struct {
	// Date is the payment date as entered (YYYY-MM-DD).
	Date     string   `json:"actual_date"`
	Method   string   `json:"actual_method"`
	Amount   float64  `json:"actual_amount"`
	Currency Currency `json:"actual_currency"`

	// THB is the realized cost converted to THB.
	THB float64 `json:"actual_thb"`
}

// ParticipantExpense is an expense as seen by one participant, together
// with the number of people sharing it.
type ParticipantExpense struct {
	Expense
	TotalParticipants int `json:"total_participants"`
}

// ActualLine is a realized payment for an expense one participant shares.
type ActualLine struct {
	ExpenseID         int64  `json:"expense_id"`
	ExpenseName       string `json:"expense_name"`
	Actual            Actual `json:"actual"`
	TotalParticipants int    `json:"total_participants"`
}
