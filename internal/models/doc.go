// Package models defines the core domain models for tripledger.
//
// # Tenancy
//
// Every record belongs to exactly one Trip. A trip id is an opaque token and
// knowing it is the access control for read operations; destructive
// operations additionally require the admin secret.
//
// # Models
//
//   - Trip: tenant boundary, created explicitly
//   - Settings: one row per trip (default buffer rate, display name)
//   - Participant: person sharing expenses, name unique within a trip
//   - Expense: shared cost in JPY or THB, split equally among its participants
//   - Invoice: immutable bill claiming previously unbilled expenses for one participant
//   - Receipt: payment confirmation claiming previously unpaid invoices
//   - Refund: manual out-of-band cash adjustment (not computed)
//
// # Billing order
//
// Records depend on each other innermost first: receipts reference invoices,
// invoices reference expenses. Deleting is only permitted from the outside in
// (void the receipt, then delete the invoice, then delete the expense).
//
// # Money
//
// Amounts are stored as float64 THB (or the expense's own currency for
// Amount). All share arithmetic goes through the calculator package, which
// rounds once per line to two decimal places.
package models
