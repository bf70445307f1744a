package service

import (
	"time"

	"github.com/mmynk/tripledger/internal/audit"
	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
)

// TripRef addresses a request to one trip. Every trip-scoped request embeds it.
type TripRef struct {
	TripID string `json:"trip_id"`
}

// GetTripID lets interceptors log the trip a request belongs to.
func (r TripRef) GetTripID() string { return r.TripID }

// Empty is the response of operations that return nothing.
type Empty struct{}

// TripRequest addresses a whole trip.
type TripRequest struct {
	TripRef
}

type CreateTripRequest struct {
	Name string `json:"name"`
}

type TripResponse struct {
	Trip     *models.Trip     `json:"trip"`
	Settings *models.Settings `json:"settings,omitempty"`
}

type ListTripsResponse struct {
	Trips []*models.Trip `json:"trips"`
}

type UpdateSettingsRequest struct {
	TripRef
	DefaultBufferRate float64 `json:"default_buffer_rate"`
	TripName          string  `json:"trip_name"`
}

type SettingsResponse struct {
	Settings *models.Settings `json:"settings"`
}

type AddParticipantRequest struct {
	TripRef
	Name string `json:"name"`
}

type FindParticipantRequest struct {
	TripRef
	Name string `json:"name"`
}

// ParticipantRequest addresses one participant of a trip.
type ParticipantRequest struct {
	TripRef
	ParticipantID int64 `json:"participant_id"`
}

type ParticipantResponse struct {
	Participant *models.Participant `json:"participant"`
}

type ListParticipantsResponse struct {
	Participants []*models.Participant `json:"participants"`
}

type CreateExpenseRequest struct {
	TripRef
	billing.ExpenseInput
}

type UpdateExpenseRequest struct {
	TripRef
	ExpenseID int64 `json:"expense_id"`
	billing.ExpenseInput
}

// ExpenseRequest addresses one expense of a trip.
type ExpenseRequest struct {
	TripRef
	ExpenseID int64 `json:"expense_id"`
}

type LogPaymentRequest struct {
	TripRef
	ExpenseID int64 `json:"expense_id"`
	billing.PaymentInput
}

type ExpenseResponse struct {
	Expense *billing.ExpenseView `json:"expense"`
}

type ListExpensesResponse struct {
	Expenses []*billing.ExpenseView `json:"expenses"`
}

type AddRefundRequest struct {
	TripRef
	ParticipantID int64   `json:"participant_id"`
	AmountTHB     float64 `json:"amount_thb"`
	Notes         string  `json:"notes"`
}

type RefundRequest struct {
	TripRef
	RefundID int64 `json:"refund_id"`
}

type RefundResponse struct {
	Refund *models.Refund `json:"refund"`
}

type ListRefundsResponse struct {
	Refunds []*models.Refund `json:"refunds"`
}

type CommitInvoiceRequest struct {
	TripRef
	ParticipantID int64 `json:"participant_id"`

	// ExpenseIDs optionally restricts the invoice to a subset of the
	// participant's unbilled expenses.
	ExpenseIDs []int64 `json:"expense_ids,omitempty"`
}

type InvoiceRequest struct {
	TripRef
	InvoiceID int64 `json:"invoice_id"`
}

type InvoiceResponse struct {
	Invoice *models.Invoice `json:"invoice"`
}

type ListInvoicesResponse struct {
	Invoices []*models.Invoice `json:"invoices"`
}

type CommitReceiptRequest struct {
	TripRef
	ParticipantID int64   `json:"participant_id"`
	InvoiceIDs    []int64 `json:"invoice_ids,omitempty"`
	PaymentMethod string  `json:"payment_method"`
}

type ReceiptRequest struct {
	TripRef
	ReceiptID int64 `json:"receipt_id"`
}

type ReceiptResponse struct {
	Receipt *models.Receipt `json:"receipt"`
}

type ListReceiptsResponse struct {
	Receipts []*models.Receipt `json:"receipts"`
}

type ReconciliationResponse struct {
	Participants []billing.ReconciliationItem `json:"participants"`
}

type CashFlowResponse struct {
	Days []billing.CashFlowDay `json:"days"`
}

type BreakdownResponse struct {
	Categories []calculator.CategoryTotal `json:"categories"`
}

type RenderDocumentRequest struct {
	TripRef
	Kind string `json:"kind"`

	// ID is the invoice or receipt id, or the participant id for a refund.
	ID int64 `json:"id"`
}

type DocumentResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type LoginRequest struct {
	Token string `json:"token"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyResponse struct {
	Valid bool `json:"valid"`
}

type TripSummariesResponse struct {
	Trips []*models.TripSummary `json:"trips"`
}

type ListEventsRequest struct {
	TripRef
	EventType string `json:"event_type,omitempty"`
}

type ListEventsResponse struct {
	Events []audit.Event `json:"events"`
}
