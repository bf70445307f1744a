package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

const expenseColumns = `e.id, e.trip_id, e.name, e.amount, e.currency, e.buffer_rate, e.status, e.created_at,
	e.actual_date, e.actual_method, e.actual_amount, e.actual_currency, e.actual_thb`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanExpense reads expenseColumns, followed by any extra destinations.
func scanExpense(row rowScanner, extra ...any) (*models.Expense, error) {
	e := &models.Expense{}
	var (
		currency, status         string
		actualDate, actualMethod sql.NullString
		actualCurrency           sql.NullString
		actualAmount, actualTHB  sql.NullFloat64
	)
	dest := []any{&e.ID, &e.TripID, &e.Name, &e.Amount, &currency, &e.BufferRate, &status, &e.CreatedAt,
		&actualDate, &actualMethod, &actualAmount, &actualCurrency, &actualTHB}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.Currency = models.Currency(currency)
	e.Status = models.ExpenseStatus(status)
	if e.Status == models.StatusCollected {
		e.Actual = &models.Actual{
			Date:     actualDate.String,
			Method:   actualMethod.String,
			Amount:   actualAmount.Float64,
			Currency: models.Currency(actualCurrency.String),
			THB:      actualTHB.Float64,
		}
	}
	return e, nil
}

// CreateExpense inserts the expense and its participant links atomically.
// Every participant must belong to the expense's trip.
func (s *SQLiteStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	e.Status = models.StatusPending
	e.Actual = nil

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tripExists(ctx, tx, e.TripID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (trip_id, name, amount, currency, buffer_rate, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.TripID, e.Name, e.Amount, string(e.Currency), e.BufferRate, string(e.Status), e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}
		e.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read expense id: %w", err)
		}

		return linkParticipants(ctx, tx, e.TripID, e.ID, e.ParticipantIDs)
	})
}

// UpdateExpense rewrites name, amount, currency and buffer rate and
// replaces the participant links. Status and actuals are left untouched.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, e *models.Expense) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE expenses SET name = ?, amount = ?, currency = ?, buffer_rate = ?
			 WHERE id = ? AND trip_id = ?`,
			e.Name, e.Amount, string(e.Currency), e.BufferRate, e.ID, e.TripID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return notFound("expense", e.ID)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM expense_participants WHERE expense_id = ?", e.ID); err != nil {
			return fmt.Errorf("failed to clear expense participants: %w", err)
		}
		return linkParticipants(ctx, tx, e.TripID, e.ID, e.ParticipantIDs)
	})
}

func linkParticipants(ctx context.Context, tx *sql.Tx, tripID string, expenseID int64, participantIDs []int64) error {
	for _, pid := range participantIDs {
		if err := participantExists(ctx, tx, tripID, pid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO expense_participants (expense_id, participant_id) VALUES (?, ?)",
			expenseID, pid,
		); err != nil {
			return fmt.Errorf("failed to link participant %d: %w", pid, err)
		}
	}
	return nil
}

// GetExpense retrieves an expense with its participants and invoice versions.
func (s *SQLiteStore) GetExpense(ctx context.Context, tripID string, expenseID int64) (*models.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses e WHERE e.id = ? AND e.trip_id = ?",
		expenseID, tripID,
	))
	if err == sql.ErrNoRows {
		return nil, notFound("expense", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := s.loadExpenseDetails(ctx, []*models.Expense{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListExpenses returns the trip's expenses, oldest first.
func (s *SQLiteStore) ListExpenses(ctx context.Context, tripID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses e WHERE e.trip_id = ? ORDER BY e.created_at, e.id",
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	if err := s.loadExpenseDetails(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// loadExpenseDetails fills participant ids, names and invoice versions.
func (s *SQLiteStore) loadExpenseDetails(ctx context.Context, expenses []*models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Expense, len(expenses))
	ids := make([]int64, 0, len(expenses))
	for _, e := range expenses {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ep.expense_id, p.id, p.name
		FROM expense_participants ep
		JOIN participants p ON p.id = ep.participant_id
		WHERE ep.expense_id IN (`+placeholders(len(ids))+`)
		ORDER BY p.name, p.id`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load expense participants: %w", err)
	}
	for rows.Next() {
		var expenseID, pid int64
		var name string
		if err := rows.Scan(&expenseID, &pid, &name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan expense participant: %w", err)
		}
		e := byID[expenseID]
		e.ParticipantIDs = append(e.ParticipantIDs, pid)
		e.ParticipantNames = append(e.ParticipantNames, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT ii.expense_id, i.version
		FROM invoice_items ii
		JOIN invoices i ON i.id = ii.invoice_id
		WHERE ii.expense_id IN (`+placeholders(len(ids))+`)
		ORDER BY i.version`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load invoice versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var expenseID, version int64
		if err := rows.Scan(&expenseID, &version); err != nil {
			return fmt.Errorf("failed to scan invoice version: %w", err)
		}
		e := byID[expenseID]
		e.InvoiceVersions = append(e.InvoiceVersions, version)
	}
	return rows.Err()
}

// LogPayment stamps all five actual fields and the collected status in a
// single statement. Logging again on a collected expense overwrites the
// actuals; there is no way back to pending.
func (s *SQLiteStore) LogPayment(ctx context.Context, tripID string, expenseID int64, actual models.Actual) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET
		    status = ?,
		    actual_date = ?,
		    actual_method = ?,
		    actual_amount = ?,
		    actual_currency = ?,
		    actual_thb = ?
		WHERE id = ? AND trip_id = ?`,
		string(models.StatusCollected), actual.Date, actual.Method, actual.Amount,
		string(actual.Currency), actual.THB, expenseID, tripID,
	)
	if err != nil {
		return fmt.Errorf("failed to log payment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("expense", expenseID)
	}
	return nil
}

// DeleteExpense removes an expense that no invoice claims.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, tripID string, expenseID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM expenses WHERE id = ? AND trip_id = ?", expenseID, tripID,
		).Scan(&one)
		if err == sql.ErrNoRows {
			return notFound("expense", expenseID)
		}
		if err != nil {
			return fmt.Errorf("failed to check expense: %w", err)
		}

		var claims int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM invoice_items WHERE expense_id = ?", expenseID,
		).Scan(&claims); err != nil {
			return fmt.Errorf("failed to check invoice items: %w", err)
		}
		if claims > 0 {
			return fmt.Errorf("expense %d: %w", expenseID, storage.ErrExpenseInvoiced)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID); err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		return nil
	})
}
