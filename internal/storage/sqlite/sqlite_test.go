package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedTrip(t *testing.T, store *SQLiteStore, names ...string) (*models.Trip, []*models.Participant) {
	t.Helper()
	ctx := context.Background()

	trip := &models.Trip{Name: "Osaka"}
	if err := store.CreateTrip(ctx, trip); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}
	var participants []*models.Participant
	for _, name := range names {
		p := &models.Participant{TripID: trip.ID, Name: name}
		if err := store.CreateParticipant(ctx, p); err != nil {
			t.Fatalf("CreateParticipant(%s) failed: %v", name, err)
		}
		participants = append(participants, p)
	}
	return trip, participants
}

func seedExpense(t *testing.T, store *SQLiteStore, tripID, name string, amount float64, currency models.Currency, pids ...int64) *models.Expense {
	t.Helper()
	e := &models.Expense{
		TripID:         tripID,
		Name:           name,
		Amount:         amount,
		Currency:       currency,
		BufferRate:     0.25,
		ParticipantIDs: pids,
	}
	if err := store.CreateExpense(context.Background(), e); err != nil {
		t.Fatalf("CreateExpense(%s) failed: %v", name, err)
	}
	return e
}

func TestTripsAndSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateTrip generates ID and settings", func(t *testing.T) {
		trip := &models.Trip{Name: "Kyoto"}
		if err := store.CreateTrip(ctx, trip); err != nil {
			t.Fatalf("CreateTrip failed: %v", err)
		}
		if trip.ID == "" {
			t.Error("Expected trip ID to be generated")
		}
		if trip.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}

		settings, err := store.GetSettings(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetSettings failed: %v", err)
		}
		if settings.DefaultBufferRate != DefaultBufferRate {
			t.Errorf("DefaultBufferRate = %v, want %v", settings.DefaultBufferRate, DefaultBufferRate)
		}
		if settings.TripName != "Kyoto" {
			t.Errorf("TripName = %q, want Kyoto", settings.TripName)
		}
	})

	t.Run("UpdateSettings renames trip", func(t *testing.T) {
		trip := &models.Trip{Name: "Draft"}
		if err := store.CreateTrip(ctx, trip); err != nil {
			t.Fatalf("CreateTrip failed: %v", err)
		}
		err := store.UpdateSettings(ctx, &models.Settings{TripID: trip.ID, DefaultBufferRate: 0.3, TripName: "Hokkaido"})
		if err != nil {
			t.Fatalf("UpdateSettings failed: %v", err)
		}

		got, err := store.GetTrip(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetTrip failed: %v", err)
		}
		if got.Name != "Hokkaido" {
			t.Errorf("Name = %q, want Hokkaido", got.Name)
		}
		settings, _ := store.GetSettings(ctx, trip.ID)
		if settings.DefaultBufferRate != 0.3 {
			t.Errorf("DefaultBufferRate = %v, want 0.3", settings.DefaultBufferRate)
		}
	})

	t.Run("GetTrip returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetTrip(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListTripSummaries counts records", func(t *testing.T) {
		trip, ps := seedTrip(t, store, "Alice", "Bob")
		seedExpense(t, store, trip.ID, "Hotel", 5000, models.CurrencyTHB, ps[0].ID, ps[1].ID)

		summaries, err := store.ListTripSummaries(ctx)
		if err != nil {
			t.Fatalf("ListTripSummaries failed: %v", err)
		}
		for _, s := range summaries {
			if s.ID != trip.ID {
				continue
			}
			if s.Participants != 2 || s.Expenses != 1 || s.Invoices != 0 {
				t.Errorf("summary = %+v, want 2 participants, 1 expense, 0 invoices", s)
			}
			return
		}
		t.Errorf("trip %s missing from summaries", trip.ID)
	})
}

func TestParticipants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	trip, ps := seedTrip(t, store, "Charlie", "Alice")

	t.Run("duplicate name within trip", func(t *testing.T) {
		err := store.CreateParticipant(ctx, &models.Participant{TripID: trip.ID, Name: "Alice"})
		if !errors.Is(err, storage.ErrDuplicateName) {
			t.Errorf("Expected ErrDuplicateName, got %v", err)
		}
	})

	t.Run("same name in another trip", func(t *testing.T) {
		other, _ := seedTrip(t, store)
		if err := store.CreateParticipant(ctx, &models.Participant{TripID: other.ID, Name: "Alice"}); err != nil {
			t.Errorf("CreateParticipant in other trip failed: %v", err)
		}
	})

	t.Run("list ordered by name", func(t *testing.T) {
		list, err := store.ListParticipants(ctx, trip.ID)
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(list) != 2 || list[0].Name != "Alice" || list[1].Name != "Charlie" {
			t.Errorf("unexpected order: %+v", list)
		}
	})

	t.Run("lookups are trip scoped", func(t *testing.T) {
		other, _ := seedTrip(t, store)
		_, err := store.GetParticipant(ctx, other.ID, ps[0].ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound across trips, got %v", err)
		}
		p, err := store.GetParticipantByName(ctx, trip.ID, "Charlie")
		if err != nil || p.ID != ps[0].ID {
			t.Errorf("GetParticipantByName = %+v, %v", p, err)
		}
	})

	t.Run("refund annotations", func(t *testing.T) {
		r := &models.Refund{TripID: trip.ID, ParticipantID: ps[1].ID, AmountTHB: 420, Notes: "cash"}
		if err := store.CreateRefund(ctx, r); err != nil {
			t.Fatalf("CreateRefund failed: %v", err)
		}
		refunds, err := store.ListRefunds(ctx, trip.ID)
		if err != nil {
			t.Fatalf("ListRefunds failed: %v", err)
		}
		if len(refunds) != 1 || refunds[0].ParticipantName != "Alice" || refunds[0].Notes != "cash" {
			t.Errorf("unexpected refunds: %+v", refunds)
		}
		if err := store.DeleteRefund(ctx, trip.ID, r.ID); err != nil {
			t.Errorf("DeleteRefund failed: %v", err)
		}
		if err := store.DeleteRefund(ctx, trip.ID, r.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	trip, ps := seedTrip(t, store, "Alice", "Bob", "Carol")

	t.Run("create and get", func(t *testing.T) {
		e := seedExpense(t, store, trip.ID, "Ramen", 3000, models.CurrencyJPY, ps[0].ID, ps[1].ID)
		got, err := store.GetExpense(ctx, trip.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.Status != models.StatusPending || got.Actual != nil {
			t.Errorf("new expense should be pending without actuals: %+v", got)
		}
		if len(got.ParticipantIDs) != 2 || got.ParticipantNames[0] != "Alice" {
			t.Errorf("participants = %v %v", got.ParticipantIDs, got.ParticipantNames)
		}
	})

	t.Run("participant from other trip rejected", func(t *testing.T) {
		_, others := seedTrip(t, store, "Mallory")
		e := &models.Expense{TripID: trip.ID, Name: "Taxi", Amount: 100, Currency: models.CurrencyTHB,
			ParticipantIDs: []int64{ps[0].ID, others[0].ID}}
		err := store.CreateExpense(ctx, e)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		list, _ := store.ListExpenses(ctx, trip.ID)
		for _, x := range list {
			if x.Name == "Taxi" {
				t.Error("rolled back expense should not exist")
			}
		}
	})

	t.Run("update replaces participants", func(t *testing.T) {
		e := seedExpense(t, store, trip.ID, "Museum", 1200, models.CurrencyJPY, ps[0].ID)
		e.ParticipantIDs = []int64{ps[1].ID, ps[2].ID}
		e.Amount = 1500
		if err := store.UpdateExpense(ctx, e); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}
		got, _ := store.GetExpense(ctx, trip.ID, e.ID)
		if got.Amount != 1500 || len(got.ParticipantIDs) != 2 {
			t.Errorf("update not applied: %+v", got)
		}
	})

	t.Run("log payment stamps actuals", func(t *testing.T) {
		e := seedExpense(t, store, trip.ID, "Ryokan", 35000, models.CurrencyJPY, ps[0].ID)
		actual := models.Actual{Date: "2024-03-01", Method: "card", Amount: 35000, Currency: models.CurrencyJPY, THB: 8400}
		if err := store.LogPayment(ctx, trip.ID, e.ID, actual); err != nil {
			t.Fatalf("LogPayment failed: %v", err)
		}
		got, _ := store.GetExpense(ctx, trip.ID, e.ID)
		if got.Status != models.StatusCollected || got.Actual == nil || *got.Actual != actual {
			t.Errorf("payment not stamped: %+v", got)
		}

		lines, err := store.ListActuals(ctx, ps[0].ID)
		if err != nil {
			t.Fatalf("ListActuals failed: %v", err)
		}
		if len(lines) != 1 || lines[0].Actual.THB != 8400 || lines[0].TotalParticipants != 1 {
			t.Errorf("unexpected actuals: %+v", lines)
		}
	})

	t.Run("log payment on missing expense", func(t *testing.T) {
		err := store.LogPayment(ctx, trip.ID, 99999, models.Actual{})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestBillingLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	trip, ps := seedTrip(t, store, "Alice", "Bob")
	alice, bob := ps[0], ps[1]

	hotel := seedExpense(t, store, trip.ID, "Hotel", 5000, models.CurrencyTHB, alice.ID, bob.ID)
	train := seedExpense(t, store, trip.ID, "Train", 14000, models.CurrencyJPY, alice.ID, bob.ID)

	inv := &models.Invoice{TripID: trip.ID, ParticipantID: alice.ID, TotalTHB: 4250, ExpenseIDs: []int64{hotel.ID, train.ID}}
	if err := store.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}

	t.Run("version equals id", func(t *testing.T) {
		if inv.ID == 0 || inv.Version != inv.ID {
			t.Errorf("Version = %d, ID = %d", inv.Version, inv.ID)
		}
	})

	t.Run("versions are unique across participants", func(t *testing.T) {
		other := &models.Invoice{TripID: trip.ID, ParticipantID: bob.ID, TotalTHB: 2500, ExpenseIDs: []int64{hotel.ID}}
		if err := store.CreateInvoice(ctx, other); err != nil {
			t.Fatalf("CreateInvoice failed: %v", err)
		}
		if other.Version <= inv.Version {
			t.Errorf("Version %d should be greater than %d", other.Version, inv.Version)
		}
	})

	t.Run("expense claimed once per participant", func(t *testing.T) {
		dup := &models.Invoice{TripID: trip.ID, ParticipantID: alice.ID, TotalTHB: 2500, ExpenseIDs: []int64{hotel.ID}}
		err := store.CreateInvoice(ctx, dup)
		if !errors.Is(err, storage.ErrAlreadyClaimed) {
			t.Errorf("Expected ErrAlreadyClaimed, got %v", err)
		}
		invoices, _ := store.ListParticipantInvoices(ctx, alice.ID)
		if len(invoices) != 1 {
			t.Errorf("rolled back invoice persisted: %d invoices", len(invoices))
		}
	})

	t.Run("invoiced ids and expense lookup", func(t *testing.T) {
		ids, err := store.ListInvoicedExpenseIDs(ctx, alice.ID)
		if err != nil {
			t.Fatalf("ListInvoicedExpenseIDs failed: %v", err)
		}
		if !ids[hotel.ID] || !ids[train.ID] {
			t.Errorf("invoiced ids = %v", ids)
		}
		expenses, err := store.ListInvoiceExpenses(ctx, inv.ID)
		if err != nil {
			t.Fatalf("ListInvoiceExpenses failed: %v", err)
		}
		if len(expenses) != 2 || expenses[0].TotalParticipants != 2 {
			t.Errorf("unexpected invoice expenses: %+v", expenses)
		}
	})

	t.Run("invoiced expense cannot be deleted", func(t *testing.T) {
		err := store.DeleteExpense(ctx, trip.ID, hotel.ID)
		if !errors.Is(err, storage.ErrExpenseInvoiced) {
			t.Errorf("Expected ErrExpenseInvoiced, got %v", err)
		}
	})

	var receipt *models.Receipt
	t.Run("receipt pays invoice", func(t *testing.T) {
		receipt = &models.Receipt{TripID: trip.ID, ParticipantID: alice.ID, TotalTHB: 4250, PaymentMethod: "cash", InvoiceIDs: []int64{inv.ID}}
		if err := store.CreateReceipt(ctx, receipt); err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}
		if receipt.ReceiptNumber != receipt.ID {
			t.Errorf("ReceiptNumber = %d, ID = %d", receipt.ReceiptNumber, receipt.ID)
		}

		unpaid, _ := store.ListUnpaidInvoices(ctx, alice.ID)
		if len(unpaid) != 0 {
			t.Errorf("expected no unpaid invoices, got %d", len(unpaid))
		}
		got, _ := store.GetInvoice(ctx, trip.ID, inv.ID)
		if got.Status != models.InvoicePaid || got.ReceiptNumber != receipt.ReceiptNumber {
			t.Errorf("invoice status = %s, receipt = %d", got.Status, got.ReceiptNumber)
		}
		r, _ := store.GetReceipt(ctx, trip.ID, receipt.ID)
		if len(r.InvoiceVersions) != 1 || r.InvoiceVersions[0] != inv.Version {
			t.Errorf("receipt invoice versions = %v", r.InvoiceVersions)
		}
	})

	t.Run("invoice paid once", func(t *testing.T) {
		dup := &models.Receipt{TripID: trip.ID, ParticipantID: alice.ID, TotalTHB: 4250, InvoiceIDs: []int64{inv.ID}}
		err := store.CreateReceipt(ctx, dup)
		if !errors.Is(err, storage.ErrAlreadyClaimed) {
			t.Errorf("Expected ErrAlreadyClaimed, got %v", err)
		}
	})

	t.Run("paid invoice cannot be deleted", func(t *testing.T) {
		err := store.DeleteInvoice(ctx, trip.ID, inv.ID)
		if !errors.Is(err, storage.ErrInvoicePaid) {
			t.Errorf("Expected ErrInvoicePaid, got %v", err)
		}
	})

	t.Run("delete from the outside in", func(t *testing.T) {
		if err := store.DeleteReceipt(ctx, trip.ID, receipt.ID); err != nil {
			t.Fatalf("DeleteReceipt failed: %v", err)
		}
		unpaid, _ := store.ListUnpaidInvoices(ctx, alice.ID)
		if len(unpaid) != 1 {
			t.Errorf("voided receipt should reopen invoice, got %d unpaid", len(unpaid))
		}
		if err := store.DeleteInvoice(ctx, trip.ID, inv.ID); err != nil {
			t.Fatalf("DeleteInvoice failed: %v", err)
		}
		ids, _ := store.ListInvoicedExpenseIDs(ctx, alice.ID)
		if len(ids) != 0 {
			t.Errorf("deleted invoice should release expenses, got %v", ids)
		}
		if err := store.DeleteExpense(ctx, trip.ID, train.ID); err != nil {
			t.Errorf("DeleteExpense failed: %v", err)
		}
	})

	t.Run("participant delete cascades", func(t *testing.T) {
		if err := store.DeleteParticipant(ctx, trip.ID, bob.ID); err != nil {
			t.Fatalf("DeleteParticipant failed: %v", err)
		}
		invoices, _ := store.ListInvoices(ctx, trip.ID)
		for _, i := range invoices {
			if i.ParticipantID == bob.ID {
				t.Errorf("invoice %d of deleted participant survived", i.ID)
			}
		}
		e, _ := store.GetExpense(ctx, trip.ID, hotel.ID)
		if len(e.ParticipantIDs) != 1 {
			t.Errorf("expense links = %v, want only Alice", e.ParticipantIDs)
		}
	})
}

func TestMigrateLegacyDatabase(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	_, err = db.ExecContext(ctx, `
		CREATE TABLE participants (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, created_at TEXT);
		CREATE TABLE expenses (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, amount REAL NOT NULL,
		    currency TEXT NOT NULL, buffer_rate REAL NOT NULL, status TEXT NOT NULL DEFAULT 'pending', created_at TEXT);
		CREATE TABLE settings (id INTEGER PRIMARY KEY, default_buffer_rate REAL, trip_name TEXT);
		INSERT INTO participants (name, created_at) VALUES ('Alice', '2024-01-02 03:04:05');
		INSERT INTO expenses (name, amount, currency, buffer_rate, created_at) VALUES ('Hotel', 5000, 'THB', 0.3, '2024-01-02 03:04:05');
		INSERT INTO settings (id, default_buffer_rate, trip_name) VALUES (1, 0.28, 'Japan 2024');
	`)
	if err != nil {
		t.Fatalf("Failed to seed legacy schema: %v", err)
	}
	db.Close()

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to open legacy db: %v", err)
	}
	defer store.Close()

	trips, err := store.ListTrips(ctx)
	if err != nil || len(trips) != 1 {
		t.Fatalf("ListTrips = %v, %v; want one legacy trip", trips, err)
	}
	trip := trips[0]
	if trip.Name != "Japan 2024" {
		t.Errorf("legacy trip name = %q", trip.Name)
	}

	settings, err := store.GetSettings(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.DefaultBufferRate != 0.28 {
		t.Errorf("DefaultBufferRate = %v, want 0.28", settings.DefaultBufferRate)
	}

	participants, _ := store.ListParticipants(ctx, trip.ID)
	if len(participants) != 1 || participants[0].CreatedAt != 1704164645 {
		t.Errorf("legacy participants = %+v", participants)
	}
	expenses, _ := store.ListExpenses(ctx, trip.ID)
	if len(expenses) != 1 || expenses[0].Actual != nil {
		t.Errorf("legacy expenses = %+v", expenses)
	}

	// Reopening applies nothing new.
	applied, err := Migrate(ctx, store.DB())
	if err != nil || len(applied) != 0 {
		t.Errorf("second Migrate = %v, %v; want none", applied, err)
	}
}
