package audit

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/storage/sqlite"
)

func newLogger(t *testing.T) EventLogger {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewSQLEventLogger(store.DB())
}

func TestWorker_PersistsBillingEvents(t *testing.T) {
	logger := newLogger(t)
	w := NewWorker(logger, 10)
	w.Start()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Observe(billing.Event{Type: billing.EventInvoiceCommitted, TripID: "trip-1", ParticipantID: 3, RecordID: 7, AmountTHB: 2100, At: at})
	w.Observe(billing.Event{Type: billing.EventReceiptCommitted, TripID: "trip-1", ParticipantID: 3, RecordID: 2, AmountTHB: 2100, At: at})
	w.Observe(billing.Event{Type: billing.EventInvoiceCommitted, TripID: "trip-2", RecordID: 8, At: at})
	w.Shutdown()

	ctx := context.Background()
	all, err := logger.List(ctx, "trip-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	invoices, err := logger.List(ctx, "trip-1", string(billing.EventInvoiceCommitted))
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, at.Unix(), invoices[0].CreatedAt.Unix())

	var decoded billing.Event
	require.NoError(t, json.Unmarshal(invoices[0].Data, &decoded))
	assert.Equal(t, int64(7), decoded.RecordID)
	assert.Equal(t, 2100.0, decoded.AmountTHB)
}

// ctxLogger records whether each save saw a live context.
type ctxLogger struct {
	mu       sync.Mutex
	saved    int
	canceled int
}

func (c *ctxLogger) Save(ctx context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		c.canceled++
		return ctx.Err()
	}
	c.saved++
	return nil
}

func (c *ctxLogger) List(ctx context.Context, tripID, eventType string) ([]Event, error) {
	return nil, nil
}

func TestWorker_ShutdownSavesQueuedEvents(t *testing.T) {
	for round := 0; round < 20; round++ {
		logger := &ctxLogger{}
		w := NewWorker(logger, 50)
		for i := 0; i < 50; i++ {
			w.Log(Event{ID: [16]byte{byte(i)}, Type: "x"})
		}
		w.Start()
		w.Shutdown()

		require.Equal(t, 0, logger.canceled, "round %d saved with a cancelled context", round)
		require.Equal(t, 50, logger.saved, "round %d", round)
	}
}

type blockingLogger struct {
	release chan struct{}
	saved   int
}

func (b *blockingLogger) Save(ctx context.Context, e Event) error {
	<-b.release
	b.saved++
	return nil
}

func (b *blockingLogger) List(ctx context.Context, tripID, eventType string) ([]Event, error) {
	return nil, nil
}

func TestWorker_DropsWhenFull(t *testing.T) {
	logger := &blockingLogger{release: make(chan struct{})}
	w := NewWorker(logger, 1)

	// Not started: the first event fills the buffer and the rest are dropped.
	for i := 0; i < 3; i++ {
		w.Log(Event{ID: [16]byte{byte(i)}, Type: "x"})
	}
	close(logger.release)
	w.Start()
	w.Shutdown()

	assert.Equal(t, 1, logger.saved)
}
