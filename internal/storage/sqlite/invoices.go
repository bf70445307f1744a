package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

const participantCountColumn = `(SELECT COUNT(*) FROM expense_participants c WHERE c.expense_id = e.id)`

// ListExpensesForParticipant returns every expense the participant shares,
// oldest first, with the number of people sharing each.
func (s *SQLiteStore) ListExpensesForParticipant(ctx context.Context, participantID int64) ([]models.ParticipantExpense, error) {
	return s.queryParticipantExpenses(ctx, `
		SELECT `+expenseColumns+`, `+participantCountColumn+`
		FROM expenses e
		JOIN expense_participants ep ON ep.expense_id = e.id
		WHERE ep.participant_id = ?
		ORDER BY e.created_at, e.id`, participantID)
}

// ListInvoiceExpenses returns the expenses claimed by an invoice with their
// current participant counts.
func (s *SQLiteStore) ListInvoiceExpenses(ctx context.Context, invoiceID int64) ([]models.ParticipantExpense, error) {
	return s.queryParticipantExpenses(ctx, `
		SELECT `+expenseColumns+`, `+participantCountColumn+`
		FROM expenses e
		JOIN invoice_items ii ON ii.expense_id = e.id
		WHERE ii.invoice_id = ?
		ORDER BY e.created_at, e.id`, invoiceID)
}

func (s *SQLiteStore) queryParticipantExpenses(ctx context.Context, query string, args ...any) ([]models.ParticipantExpense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participant expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.ParticipantExpense
	for rows.Next() {
		var count int
		e, err := scanExpense(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant expense: %w", err)
		}
		expenses = append(expenses, models.ParticipantExpense{Expense: *e, TotalParticipants: count})
	}
	return expenses, rows.Err()
}

// ListInvoicedExpenseIDs returns the ids of expenses already claimed by any
// of the participant's invoices.
func (s *SQLiteStore) ListInvoicedExpenseIDs(ctx context.Context, participantID int64) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ii.expense_id
		FROM invoice_items ii
		JOIN invoices i ON i.id = ii.invoice_id
		WHERE i.participant_id = ?`, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoiced expenses: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan invoiced expense: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// CreateInvoice inserts the invoice and its items in one transaction. The
// invoice id doubles as its version. If another invoice of the same
// participant already claims one of the expenses, nothing is written and
// storage.ErrAlreadyClaimed is returned.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	if inv.CreatedAt == 0 {
		inv.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := participantExists(ctx, tx, inv.TripID, inv.ParticipantID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO invoices (trip_id, participant_id, version, total_thb, created_at)
			 VALUES (?, ?, 0, ?, ?)`,
			inv.TripID, inv.ParticipantID, inv.TotalTHB, inv.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read invoice id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE invoices SET version = ? WHERE id = ?", id, id); err != nil {
			return fmt.Errorf("failed to set invoice version: %w", err)
		}

		for _, expenseID := range inv.ExpenseIDs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO invoice_items (invoice_id, expense_id, participant_id) VALUES (?, ?, ?)",
				id, expenseID, inv.ParticipantID,
			)
			if isUniqueViolation(err) {
				return fmt.Errorf("expense %d: %w", expenseID, storage.ErrAlreadyClaimed)
			}
			if err != nil {
				return fmt.Errorf("failed to insert invoice item: %w", err)
			}
		}

		inv.ID = id
		inv.Version = id
		inv.Status = models.InvoiceUnpaid
		return nil
	})
}

const invoiceSelect = `
	SELECT i.id, i.trip_id, i.participant_id, p.name, i.version, i.total_thb, i.created_at, r.receipt_number
	FROM invoices i
	JOIN participants p ON p.id = i.participant_id
	LEFT JOIN receipt_items ri ON ri.invoice_id = i.id
	LEFT JOIN receipts r ON r.id = ri.receipt_id`

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var receiptNumber sql.NullInt64
	if err := row.Scan(&inv.ID, &inv.TripID, &inv.ParticipantID, &inv.ParticipantName,
		&inv.Version, &inv.TotalTHB, &inv.CreatedAt, &receiptNumber); err != nil {
		return nil, err
	}
	inv.Status = models.InvoiceUnpaid
	if receiptNumber.Valid {
		inv.Status = models.InvoicePaid
		inv.ReceiptNumber = receiptNumber.Int64
	}
	return inv, nil
}

// GetInvoice retrieves an invoice scoped to a trip, with its expense ids.
func (s *SQLiteStore) GetInvoice(ctx context.Context, tripID string, invoiceID int64) (*models.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRowContext(ctx,
		invoiceSelect+" WHERE i.id = ? AND i.trip_id = ?", invoiceID, tripID))
	if err == sql.ErrNoRows {
		return nil, notFound("invoice", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if err := s.loadInvoiceExpenseIDs(ctx, []*models.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns all invoices of a trip, newest first.
func (s *SQLiteStore) ListInvoices(ctx context.Context, tripID string) ([]*models.Invoice, error) {
	return s.queryInvoices(ctx, invoiceSelect+" WHERE i.trip_id = ? ORDER BY i.version DESC", tripID)
}

// ListParticipantInvoices returns one participant's invoices by version.
func (s *SQLiteStore) ListParticipantInvoices(ctx context.Context, participantID int64) ([]*models.Invoice, error) {
	return s.queryInvoices(ctx, invoiceSelect+" WHERE i.participant_id = ? ORDER BY i.version", participantID)
}

// ListUnpaidInvoices returns the participant's invoices no receipt
// references, by version.
func (s *SQLiteStore) ListUnpaidInvoices(ctx context.Context, participantID int64) ([]*models.Invoice, error) {
	return s.queryInvoices(ctx,
		invoiceSelect+" WHERE i.participant_id = ? AND ri.invoice_id IS NULL ORDER BY i.version",
		participantID)
}

func (s *SQLiteStore) queryInvoices(ctx context.Context, query string, args ...any) ([]*models.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}

	var invoices []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}

	if err := s.loadInvoiceExpenseIDs(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (s *SQLiteStore) loadInvoiceExpenseIDs(ctx context.Context, invoices []*models.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Invoice, len(invoices))
	ids := make([]int64, 0, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
		ids = append(ids, inv.ID)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT invoice_id, expense_id FROM invoice_items WHERE invoice_id IN ("+placeholders(len(ids))+") ORDER BY expense_id",
		int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID, expenseID int64
		if err := rows.Scan(&invoiceID, &expenseID); err != nil {
			return fmt.Errorf("failed to scan invoice item: %w", err)
		}
		inv := byID[invoiceID]
		inv.ExpenseIDs = append(inv.ExpenseIDs, expenseID)
	}
	return rows.Err()
}

// DeleteInvoice removes an unpaid invoice, releasing its expenses for
// future invoices.
func (s *SQLiteStore) DeleteInvoice(ctx context.Context, tripID string, invoiceID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM invoices WHERE id = ? AND trip_id = ?", invoiceID, tripID,
		).Scan(&one)
		if err == sql.ErrNoRows {
			return notFound("invoice", invoiceID)
		}
		if err != nil {
			return fmt.Errorf("failed to check invoice: %w", err)
		}

		var paid int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM receipt_items WHERE invoice_id = ?", invoiceID,
		).Scan(&paid); err != nil {
			return fmt.Errorf("failed to check receipt items: %w", err)
		}
		if paid > 0 {
			return fmt.Errorf("invoice %d: %w", invoiceID, storage.ErrInvoicePaid)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", invoiceID); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return nil
	})
}

// ListActuals returns realized payments for the participant's collected expenses.
func (s *SQLiteStore) ListActuals(ctx context.Context, participantID int64) ([]models.ActualLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.actual_date, e.actual_method, e.actual_amount, e.actual_currency, e.actual_thb,
		       `+participantCountColumn+`
		FROM expenses e
		JOIN expense_participants ep ON ep.expense_id = e.id
		WHERE ep.participant_id = ? AND e.status = ?
		ORDER BY e.created_at, e.id`,
		participantID, string(models.StatusCollected))
	if err != nil {
		return nil, fmt.Errorf("failed to list actuals: %w", err)
	}
	defer rows.Close()

	var lines []models.ActualLine
	for rows.Next() {
		var (
			line         models.ActualLine
			date, method sql.NullString
			currency     sql.NullString
			amount, thb  sql.NullFloat64
		)
		if err := rows.Scan(&line.ExpenseID, &line.ExpenseName, &date, &method, &amount,
			&currency, &thb, &line.TotalParticipants); err != nil {
			return nil, fmt.Errorf("failed to scan actual: %w", err)
		}
		line.Actual = models.Actual{
			Date:     date.String,
			Method:   method.String,
			Amount:   amount.Float64,
			Currency: models.Currency(currency.String),
			THB:      thb.Float64,
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
