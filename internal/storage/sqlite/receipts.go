package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// CreateReceipt inserts the receipt and its items in one transaction. The
// receipt id doubles as its number. An invoice can be paid by only one
// receipt; a conflicting claim writes nothing and returns
// storage.ErrAlreadyClaimed.
func (s *SQLiteStore) CreateReceipt(ctx context.Context, r *models.Receipt) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := participantExists(ctx, tx, r.TripID, r.ParticipantID); err != nil {
			return err
		}

		var method any
		if r.PaymentMethod != "" {
			method = r.PaymentMethod
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO receipts (trip_id, participant_id, receipt_number, total_thb, payment_method, created_at)
			 VALUES (?, ?, 0, ?, ?, ?)`,
			r.TripID, r.ParticipantID, r.TotalTHB, method, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert receipt: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read receipt id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE receipts SET receipt_number = ? WHERE id = ?", id, id); err != nil {
			return fmt.Errorf("failed to set receipt number: %w", err)
		}

		for _, invoiceID := range r.InvoiceIDs {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO receipt_items (receipt_id, invoice_id) VALUES (?, ?)", id, invoiceID)
			if isUniqueViolation(err) {
				return fmt.Errorf("invoice %d: %w", invoiceID, storage.ErrAlreadyClaimed)
			}
			if err != nil {
				return fmt.Errorf("failed to insert receipt item: %w", err)
			}
		}

		r.ID = id
		r.ReceiptNumber = id
		return nil
	})
}

const receiptSelect = `
	SELECT r.id, r.trip_id, r.participant_id, p.name, r.receipt_number, r.total_thb, r.payment_method, r.created_at
	FROM receipts r
	JOIN participants p ON p.id = r.participant_id`

func scanReceipt(row rowScanner) (*models.Receipt, error) {
	r := &models.Receipt{}
	var method sql.NullString
	if err := row.Scan(&r.ID, &r.TripID, &r.ParticipantID, &r.ParticipantName,
		&r.ReceiptNumber, &r.TotalTHB, &method, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.PaymentMethod = method.String
	return r, nil
}

// GetReceipt retrieves a receipt scoped to a trip, with its invoice ids and versions.
func (s *SQLiteStore) GetReceipt(ctx context.Context, tripID string, receiptID int64) (*models.Receipt, error) {
	r, err := scanReceipt(s.db.QueryRowContext(ctx,
		receiptSelect+" WHERE r.id = ? AND r.trip_id = ?", receiptID, tripID))
	if err == sql.ErrNoRows {
		return nil, notFound("receipt", receiptID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	if err := s.loadReceiptInvoices(ctx, []*models.Receipt{r}); err != nil {
		return nil, err
	}
	return r, nil
}

// ListReceiptInvoices returns the invoices paid by a receipt, by version.
func (s *SQLiteStore) ListReceiptInvoices(ctx context.Context, receiptID int64) ([]*models.Invoice, error) {
	return s.queryInvoices(ctx, invoiceSelect+" WHERE ri.receipt_id = ? ORDER BY i.version", receiptID)
}

// ListReceipts returns all receipts of a trip, newest first.
func (s *SQLiteStore) ListReceipts(ctx context.Context, tripID string) ([]*models.Receipt, error) {
	return s.queryReceipts(ctx, receiptSelect+" WHERE r.trip_id = ? ORDER BY r.receipt_number DESC", tripID)
}

// ListParticipantReceipts returns one participant's receipts by number.
func (s *SQLiteStore) ListParticipantReceipts(ctx context.Context, participantID int64) ([]*models.Receipt, error) {
	return s.queryReceipts(ctx, receiptSelect+" WHERE r.participant_id = ? ORDER BY r.receipt_number", participantID)
}

func (s *SQLiteStore) queryReceipts(ctx context.Context, query string, args ...any) ([]*models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}

	var receipts []*models.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}

	if err := s.loadReceiptInvoices(ctx, receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (s *SQLiteStore) loadReceiptInvoices(ctx context.Context, receipts []*models.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Receipt, len(receipts))
	ids := make([]int64, 0, len(receipts))
	for _, r := range receipts {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ri.receipt_id, i.id, i.version
		FROM receipt_items ri
		JOIN invoices i ON i.id = ri.invoice_id
		WHERE ri.receipt_id IN (`+placeholders(len(ids))+`)
		ORDER BY i.version`, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load receipt items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var receiptID, invoiceID, version int64
		if err := rows.Scan(&receiptID, &invoiceID, &version); err != nil {
			return fmt.Errorf("failed to scan receipt item: %w", err)
		}
		r := byID[receiptID]
		r.InvoiceIDs = append(r.InvoiceIDs, invoiceID)
		r.InvoiceVersions = append(r.InvoiceVersions, version)
	}
	return rows.Err()
}

// DeleteReceipt voids a receipt. Its items cascade away, so the invoices it
// paid become unpaid again.
func (s *SQLiteStore) DeleteReceipt(ctx context.Context, tripID string, receiptID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM receipts WHERE id = ? AND trip_id = ?", receiptID, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("receipt", receiptID)
	}
	return nil
}
