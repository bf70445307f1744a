package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// migration is one ordered schema step. Each step must be idempotent: it
// may find the database already in the target shape (fresh databases get
// the full base schema from step 1) and must then do nothing.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrations is applied in order, once each, recorded in schema_migrations.
// Append only; never reorder or edit a released step.
var migrations = []migration{
	{1, "base schema", migrateBaseSchema},
	{2, "expense actual columns", migrateExpenseActuals},
	{3, "assign legacy data to trip", migrateLegacyTrip},
	{4, "indexes and claim guards", migrateIndexes},
	{5, "audit events", migrateEvents},
}

// Migrate applies every pending migration and returns the versions applied.
func Migrate(ctx context.Context, db *sql.DB) ([]int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate migrations: %w", err)
	}

	var done []int
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := runMigration(ctx, db, m); err != nil {
			return done, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		slog.Info("Applied migration", "version", m.version, "name", m.name)
		done = append(done, m.version)
	}
	return done, nil
}

func runMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now().Unix(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// IMPORTANT: trips must be created BEFORE every other table due to foreign key constraints.
const baseSchema = `
CREATE TABLE IF NOT EXISTS trips (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    trip_id TEXT PRIMARY KEY,
    default_buffer_rate REAL NOT NULL,
    trip_name TEXT NOT NULL,
    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS participants (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id TEXT REFERENCES trips(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS expenses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id TEXT REFERENCES trips(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    buffer_rate REAL NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at INTEGER NOT NULL,
    actual_date TEXT,
    actual_method TEXT,
    actual_amount REAL,
    actual_currency TEXT,
    actual_thb REAL
);

CREATE TABLE IF NOT EXISTS expense_participants (
    expense_id INTEGER NOT NULL,
    participant_id INTEGER NOT NULL,
    PRIMARY KEY (expense_id, participant_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS refunds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id TEXT REFERENCES trips(id) ON DELETE CASCADE,
    participant_id INTEGER NOT NULL,
    amount_thb REAL NOT NULL,
    notes TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS invoices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id TEXT REFERENCES trips(id) ON DELETE CASCADE,
    participant_id INTEGER NOT NULL,
    version INTEGER NOT NULL,
    total_thb REAL NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS invoice_items (
    invoice_id INTEGER NOT NULL,
    expense_id INTEGER NOT NULL,
    participant_id INTEGER,
    PRIMARY KEY (invoice_id, expense_id),
    FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE,
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS receipts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trip_id TEXT REFERENCES trips(id) ON DELETE CASCADE,
    participant_id INTEGER NOT NULL,
    receipt_number INTEGER NOT NULL,
    total_thb REAL NOT NULL,
    payment_method TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS receipt_items (
    receipt_id INTEGER NOT NULL,
    invoice_id INTEGER NOT NULL,
    PRIMARY KEY (receipt_id, invoice_id),
    FOREIGN KEY (receipt_id) REFERENCES receipts(id) ON DELETE CASCADE,
    FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE
);
`

func migrateBaseSchema(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, baseSchema)
	return err
}

// migrateExpenseActuals adds the actual_* columns to databases created
// before payments were merged into the expenses table.
func migrateExpenseActuals(ctx context.Context, tx *sql.Tx) error {
	columns := []struct{ name, typ string }{
		{"actual_date", "TEXT"},
		{"actual_method", "TEXT"},
		{"actual_amount", "REAL"},
		{"actual_currency", "TEXT"},
		{"actual_thb", "REAL"},
	}
	for _, c := range columns {
		if err := addColumnIfMissing(ctx, tx, "expenses", c.name, c.typ); err != nil {
			return err
		}
	}
	return nil
}

// legacyTables are the tables that predate trips and may hold rows with no trip.
var legacyTables = []string{"participants", "expenses", "refunds", "invoices", "receipts"}

// migrateLegacyTrip brings a single-trip database into the multi-trip
// layout: it adds trip_id where missing, normalizes timestamps to Unix
// seconds and assigns every orphaned row to a synthetic "Legacy Trip".
// On a fresh database it finds nothing to do.
func migrateLegacyTrip(ctx context.Context, tx *sql.Tx) error {
	for _, table := range legacyTables {
		if err := addColumnIfMissing(ctx, tx, table, "trip_id", "TEXT REFERENCES trips(id) ON DELETE CASCADE"); err != nil {
			return err
		}
		// Legacy rows stored CURRENT_TIMESTAMP text.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %s SET created_at = CAST(strftime('%%s', created_at) AS INTEGER) WHERE typeof(created_at) = 'text'",
			table,
		)); err != nil {
			return fmt.Errorf("failed to normalize %s.created_at: %w", table, err)
		}
	}

	legacySettings, err := hasLegacySettings(ctx, tx)
	if err != nil {
		return err
	}

	orphans := 0
	for _, table := range legacyTables {
		var n int
		if err := tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE trip_id IS NULL", table),
		).Scan(&n); err != nil {
			return fmt.Errorf("failed to count orphaned %s: %w", table, err)
		}
		orphans += n
	}
	if orphans == 0 && !legacySettings {
		return nil
	}

	tripID := uuid.New().String()
	tripName := "Legacy Trip"
	bufferRate := DefaultBufferRate
	if legacySettings {
		// Single-row settings table keyed by id = 1.
		row := tx.QueryRowContext(ctx, "SELECT default_buffer_rate, trip_name FROM settings LIMIT 1")
		var name sql.NullString
		var rate sql.NullFloat64
		if err := row.Scan(&rate, &name); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to read legacy settings: %w", err)
		}
		if rate.Valid {
			bufferRate = rate.Float64
		}
		if name.Valid && name.String != "" {
			tripName = name.String
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO trips (id, name, created_at) VALUES (?, ?, ?)",
		tripID, tripName, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to create legacy trip: %w", err)
	}
	for _, table := range legacyTables {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET trip_id = ? WHERE trip_id IS NULL", table), tripID,
		); err != nil {
			return fmt.Errorf("failed to assign legacy %s: %w", table, err)
		}
	}

	if legacySettings {
		stmts := []string{
			"ALTER TABLE settings RENAME TO settings_legacy",
			`CREATE TABLE settings (
			    trip_id TEXT PRIMARY KEY,
			    default_buffer_rate REAL NOT NULL,
			    trip_name TEXT NOT NULL,
			    FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
			)`,
			"DROP TABLE settings_legacy",
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to rebuild settings: %w", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO settings (trip_id, default_buffer_rate, trip_name) VALUES (?, ?, ?)",
		tripID, bufferRate, tripName,
	); err != nil {
		return fmt.Errorf("failed to create legacy settings: %w", err)
	}

	slog.Info("Assigned legacy data to trip", "trip_id", tripID, "rows", orphans)
	return nil
}

// migrateIndexes adds lookup indexes and the storage-level claim guards:
// an expense can be claimed by at most one invoice per participant, and an
// invoice can be paid by at most one receipt.
func migrateIndexes(ctx context.Context, tx *sql.Tx) error {
	if err := addColumnIfMissing(ctx, tx, "invoice_items", "participant_id", "INTEGER"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE invoice_items
		SET participant_id = (SELECT participant_id FROM invoices WHERE invoices.id = invoice_items.invoice_id)
		WHERE participant_id IS NULL`); err != nil {
		return fmt.Errorf("failed to backfill invoice_items.participant_id: %w", err)
	}

	_, err := tx.ExecContext(ctx, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_trip_name ON participants(trip_id, name);
CREATE INDEX IF NOT EXISTS idx_expenses_trip_id ON expenses(trip_id);
CREATE INDEX IF NOT EXISTS idx_expense_participants_participant ON expense_participants(participant_id);
CREATE INDEX IF NOT EXISTS idx_invoices_trip_id ON invoices(trip_id);
CREATE INDEX IF NOT EXISTS idx_invoices_participant_id ON invoices(participant_id);
CREATE INDEX IF NOT EXISTS idx_invoice_items_expense_id ON invoice_items(expense_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_items_claim ON invoice_items(participant_id, expense_id);
CREATE INDEX IF NOT EXISTS idx_receipts_trip_id ON receipts(trip_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_receipt_items_invoice ON receipt_items(invoice_id);
CREATE INDEX IF NOT EXISTS idx_refunds_trip_id ON refunds(trip_id);
`)
	return err
}

func migrateEvents(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    trip_id TEXT,
    event_type TEXT NOT NULL,
    event_data TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_trip_type ON events(trip_id, event_type);
`)
	return err
}

func hasLegacySettings(ctx context.Context, tx *sql.Tx) (bool, error) {
	ok, err := hasColumn(ctx, tx, "settings", "trip_id")
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("failed to scan %s columns: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	ok, err := hasColumn(ctx, tx, table, column)
	if err != nil || ok {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	slog.Info("Added column", "table", table, "column", column)
	return nil
}
