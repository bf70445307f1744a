// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tripledger/internal/models"
)

var (
	// ErrNotFound is returned when a trip, participant, expense, invoice,
	// receipt or refund does not exist within the given trip.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a participant name is already used
	// within the trip.
	ErrDuplicateName = errors.New("participant name already exists in trip")

	// ErrInvoicePaid blocks deleting an invoice referenced by a receipt.
	ErrInvoicePaid = errors.New("invoice has been paid; void the receipt first")

	// ErrExpenseInvoiced blocks deleting an expense referenced by an invoice.
	ErrExpenseInvoiced = errors.New("expense is included in an invoice; delete the invoice first")

	// ErrAlreadyClaimed is returned when a concurrent commit claimed an
	// expense (for the same participant) or an invoice first.
	ErrAlreadyClaimed = errors.New("already claimed by another billing record")
)

// TripStore persists trips and their settings.
type TripStore interface {
	// CreateTrip persists a new trip. The trip.ID field is generated if empty.
	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	ListTrips(ctx context.Context) ([]*models.Trip, error)
	ListTripSummaries(ctx context.Context) ([]*models.TripSummary, error)

	// GetSettings returns the trip's settings, creating the row with
	// defaults on first access.
	GetSettings(ctx context.Context, tripID string) (*models.Settings, error)
	UpdateSettings(ctx context.Context, settings *models.Settings) error
}

// ParticipantStore persists participants and manual refund annotations.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, tripID string, participantID int64) (*models.Participant, error)
	GetParticipantByName(ctx context.Context, tripID, name string) (*models.Participant, error)
	ListParticipants(ctx context.Context, tripID string) ([]*models.Participant, error)

	// DeleteParticipant cascades to expense links, refunds, invoices and receipts.
	DeleteParticipant(ctx context.Context, tripID string, participantID int64) error

	CreateRefund(ctx context.Context, r *models.Refund) error
	ListRefunds(ctx context.Context, tripID string) ([]*models.Refund, error)
	DeleteRefund(ctx context.Context, tripID string, refundID int64) error
}

// ExpenseStore persists expenses and their participant links.
type ExpenseStore interface {
	// CreateExpense inserts the expense and its participant links atomically.
	CreateExpense(ctx context.Context, e *models.Expense) error

	// UpdateExpense rewrites the expense fields and replaces its participant links.
	UpdateExpense(ctx context.Context, e *models.Expense) error

	GetExpense(ctx context.Context, tripID string, expenseID int64) (*models.Expense, error)
	ListExpenses(ctx context.Context, tripID string) ([]*models.Expense, error)

	// LogPayment stamps all actual fields and moves the expense to collected
	// in a single statement.
	LogPayment(ctx context.Context, tripID string, expenseID int64, actual models.Actual) error

	// DeleteExpense fails with ErrExpenseInvoiced if any invoice claims it.
	DeleteExpense(ctx context.Context, tripID string, expenseID int64) error
}

// BillingStore is the persistence contract consumed by the billing engines.
type BillingStore interface {
	// ListExpensesForParticipant returns every expense the participant
	// shares, oldest first, each with its total participant count.
	ListExpensesForParticipant(ctx context.Context, participantID int64) ([]models.ParticipantExpense, error)

	// ListInvoicedExpenseIDs returns the ids of expenses already claimed by
	// any of the participant's invoices.
	ListInvoicedExpenseIDs(ctx context.Context, participantID int64) (map[int64]bool, error)

	// CreateInvoice inserts the invoice and one item per expense in one
	// transaction. It assigns ID and sets Version to the same value.
	CreateInvoice(ctx context.Context, inv *models.Invoice) error

	GetInvoice(ctx context.Context, tripID string, invoiceID int64) (*models.Invoice, error)

	// ListInvoiceExpenses returns the expenses claimed by an invoice, with
	// their current participant counts.
	ListInvoiceExpenses(ctx context.Context, invoiceID int64) ([]models.ParticipantExpense, error)

	// ListInvoices returns all invoices of a trip, newest first, with
	// payment status derived from receipt links.
	ListInvoices(ctx context.Context, tripID string) ([]*models.Invoice, error)

	// ListParticipantInvoices returns one participant's invoices by version.
	ListParticipantInvoices(ctx context.Context, participantID int64) ([]*models.Invoice, error)

	// DeleteInvoice fails with ErrInvoicePaid if a receipt references it.
	DeleteInvoice(ctx context.Context, tripID string, invoiceID int64) error

	// ListUnpaidInvoices returns the participant's invoices that no receipt
	// references, by version.
	ListUnpaidInvoices(ctx context.Context, participantID int64) ([]*models.Invoice, error)

	// CreateReceipt inserts the receipt and one item per invoice in one
	// transaction. It assigns ID and sets ReceiptNumber to the same value.
	CreateReceipt(ctx context.Context, r *models.Receipt) error

	GetReceipt(ctx context.Context, tripID string, receiptID int64) (*models.Receipt, error)
	ListReceiptInvoices(ctx context.Context, receiptID int64) ([]*models.Invoice, error)
	ListReceipts(ctx context.Context, tripID string) ([]*models.Receipt, error)
	ListParticipantReceipts(ctx context.Context, participantID int64) ([]*models.Receipt, error)

	// DeleteReceipt voids a receipt, re-opening its invoices as unpaid.
	DeleteReceipt(ctx context.Context, tripID string, receiptID int64) error

	// ListActuals returns realized payments for the participant's collected expenses.
	ListActuals(ctx context.Context, participantID int64) ([]models.ActualLine, error)
}

// Store defines the complete storage backend.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	TripStore
	ParticipantStore
	ExpenseStore
	BillingStore

	// Close releases any resources held by the store.
	Close() error
}
