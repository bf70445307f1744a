package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/tripledger/internal/billing"
)

// Ensure Worker observes billing events
var _ billing.Listener = (*Worker)(nil)

// Worker saves events on a background goroutine so billing commits never
// wait on the audit write. When the buffer is full events are dropped and
// logged.
type Worker struct {
	eventCh chan Event
	logger  EventLogger
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewWorker creates a worker with a buffer of bufferSize events.
func NewWorker(logger EventLogger, bufferSize int) *Worker {
	if bufferSize < 1 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		eventCh: make(chan Event, bufferSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the background writer.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				slog.Info("Draining audit events before shutdown", "remaining_events", len(w.eventCh))
				for len(w.eventCh) > 0 {
					event := <-w.eventCh
					if err := w.logger.Save(context.Background(), event); err != nil {
						slog.Error("failed to save event during shutdown", "error", err, "event_type", event.Type)
					}
				}
				return
			case event := <-w.eventCh:
				// Shutdown may already have cancelled w.ctx; a queued event is
				// still saved.
				if err := w.logger.Save(context.WithoutCancel(w.ctx), event); err != nil {
					slog.Error("failed to save event", "error", err, "event_type", event.Type)
				}
			}
		}
	}()
}

// Log queues an event without blocking.
func (w *Worker) Log(event Event) {
	select {
	case w.eventCh <- event:
	default:
		slog.Warn("audit channel full, dropping event", "event_type", event.Type, "trip_id", event.TripID)
	}
}

// Observe implements billing.Listener.
func (w *Worker) Observe(ev billing.Event) {
	event, err := FromBilling(ev)
	if err != nil {
		slog.Error("failed to encode audit event", "error", err, "event_type", ev.Type)
		return
	}
	w.Log(event)
}

// FromBilling converts a billing event into an audit record with a fresh id.
func FromBilling(ev billing.Event) (Event, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New(),
		TripID:    ev.TripID,
		Type:      string(ev.Type),
		Data:      data,
		CreatedAt: ev.At,
	}, nil
}

// Shutdown stops the worker after saving everything still queued.
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}
