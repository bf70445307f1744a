package models

// InvoiceStatus is derived from whether a receipt references the invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoicePaid   InvoiceStatus = "paid"
)

// Invoice is an immutable bill claiming a set of previously unbilled
// expenses for one participant.
type Invoice struct {
	ID              int64  `json:"id"`
	TripID          string `json:"trip_id"`
	ParticipantID   int64  `json:"participant_id"`
	ParticipantName string `json:"participant_name"`

	// Version equals ID. Invoices share a single monotonic sequence so two
	// participants' invoices can never collide on a version number. Do not
	// reintroduce a per-participant counter.
	Version int64 `json:"version"`

	// TotalTHB is the snapshot of the line shares at creation time. It does
	// not change when the underlying expenses are edited later.
	TotalTHB float64 `json:"total_thb"`

	CreatedAt int64 `json:"created_at"`

	// ExpenseIDs are the claimed expenses. Set on create.
	ExpenseIDs []int64 `json:"expense_ids"`

	// Status and ReceiptNumber are populated by list queries.
	Status        InvoiceStatus `json:"status"`
	ReceiptNumber int64         `json:"receipt_number,omitempty"`
}

// Receipt confirms payment of a set of previously unpaid invoices.
type Receipt struct {
	ID              int64  `json:"id"`
	TripID          string `json:"trip_id"`
	ParticipantID   int64  `json:"participant_id"`
	ParticipantName string `json:"participant_name"`

	// ReceiptNumber equals ID, following the same rule as Invoice.Version.
	ReceiptNumber int64 `json:"receipt_number"`

	TotalTHB      float64 `json:"total_thb"`
	PaymentMethod string  `json:"payment_method"`
	CreatedAt     int64   `json:"created_at"`

	// InvoiceIDs are the paid invoices. Set on create.
	InvoiceIDs []int64 `json:"invoice_ids"`

	// InvoiceVersions is populated by list queries.
	InvoiceVersions []int64 `json:"invoice_versions"`
}
