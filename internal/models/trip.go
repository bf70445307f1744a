package models

// Trip is the root tenant boundary.
type Trip struct {
	// ID is an opaque token (UUID format). Knowledge of the id grants access.
	ID string `json:"id"`

	Name string `json:"name"`

	// CreatedAt is the Unix timestamp when the trip was created.
	CreatedAt int64 `json:"created_at"`
}

// Settings holds per-trip defaults. One row exists per trip; it is created
// on first access if missing.
type Settings struct {
	TripID string `json:"trip_id"`

	// DefaultBufferRate is suggested for new JPY expenses.
	DefaultBufferRate float64 `json:"default_buffer_rate"`

	// TripName is the display name printed on documents.
	TripName string `json:"trip_name"`
}

// TripSummary is a row of the admin dashboard.
type TripSummary struct {
	Trip
	Participants int `json:"participant_count"`
	Expenses     int `json:"expense_count"`
	Invoices     int `json:"invoice_count"`
	Receipts     int `json:"receipt_count"`
}

// Participant is a person sharing expenses within a trip.
type Participant struct {
	ID     int64  `json:"id"`
	TripID string `json:"trip_id"`

	// Name is unique within a trip.
	Name string `json:"name"`

	CreatedAt int64 `json:"created_at"`
}

// Refund records a manual cash adjustment handed to or taken from a
// participant. It is an annotation; the computed reconciliation lives in
// the billing package.
type Refund struct {
	ID              int64   `json:"id"`
	TripID          string  `json:"trip_id"`
	ParticipantID   int64   `json:"participant_id"`
	ParticipantName string  `json:"participant_name"`
	AmountTHB       float64 `json:"amount_thb"`
	Notes           string  `json:"notes"`
	CreatedAt       int64   `json:"created_at"`
}
