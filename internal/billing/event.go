package billing

import "time"

// EventType names a committed billing change.
type EventType string

const (
	EventInvoiceCommitted EventType = "invoice.committed"
	EventInvoiceDeleted   EventType = "invoice.deleted"
	EventReceiptCommitted EventType = "receipt.committed"
	EventReceiptVoided    EventType = "receipt.voided"
	EventPaymentLogged    EventType = "expense.payment_logged"
	EventExpenseDeleted   EventType = "expense.deleted"
)

// Event describes one committed change. RecordID is the invoice, receipt or
// expense id depending on Type.
type Event struct {
	Type          EventType `json:"type"`
	TripID        string    `json:"trip_id"`
	ParticipantID int64     `json:"participant_id,omitempty"`
	RecordID      int64     `json:"record_id"`
	AmountTHB     float64   `json:"amount_thb"`
	At            time.Time `json:"at"`
}
