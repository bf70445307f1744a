// Package billing turns a trip's shared expenses into invoices, receipts and
// refund statements.
//
// The Engine is the only writer of billing records. Every commit is a
// single store transaction; concurrent commits for the same participant are
// resolved by the store's claim guards, and the loser reports the same
// "nothing to do" error a sequential caller would see.
package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmynk/tripledger/internal/storage"
)

// Listener observes billing events after they are committed. Implementations
// must not block.
type Listener interface {
	Observe(Event)
}

// Engine implements the invoice, receipt and reconciliation engines on top
// of a storage.Store.
type Engine struct {
	store     storage.Store
	renderer  Renderer
	listeners []Listener
	now       func() time.Time

	defaultTripName string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer sets the document renderer used by RenderDocument.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithListener registers a listener for billing events.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDefaultTripName sets the name given to trips created without one.
func WithDefaultTripName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.defaultTripName = name
		}
	}
}

// NewEngine creates an Engine backed by store.
func NewEngine(store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		now:             time.Now,
		defaultTripName: "My Trip",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	slog.InfoContext(ctx, "Billing event",
		"type", ev.Type,
		"trip_id", ev.TripID,
		"participant_id", ev.ParticipantID,
		"record_id", ev.RecordID,
		"amount_thb", ev.AmountTHB,
	)
	for _, l := range e.listeners {
		l.Observe(ev)
	}
}

// tripName returns the display name printed on documents.
func (e *Engine) tripName(ctx context.Context, tripID string) string {
	settings, err := e.store.GetSettings(ctx, tripID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load settings for document", "trip_id", tripID, "error", err)
		return e.defaultTripName
	}
	return settings.TripName
}
