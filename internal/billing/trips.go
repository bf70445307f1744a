package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmynk/tripledger/internal/models"
)

// CreateTrip creates a trip. An empty name falls back to the default.
func (e *Engine) CreateTrip(ctx context.Context, name string) (*models.Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = e.defaultTripName
	}
	trip := &models.Trip{Name: name, CreatedAt: e.now().Unix()}
	if err := e.store.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}
	return trip, nil
}

// GetTrip returns a trip by id.
func (e *Engine) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	return e.store.GetTrip(ctx, tripID)
}

// ListTrips returns every trip, newest first.
func (e *Engine) ListTrips(ctx context.Context) ([]*models.Trip, error) {
	return e.store.ListTrips(ctx)
}

// TripSummaries returns every trip with record counts.
func (e *Engine) TripSummaries(ctx context.Context) ([]*models.TripSummary, error) {
	return e.store.ListTripSummaries(ctx)
}

// GetSettings returns the trip's settings.
func (e *Engine) GetSettings(ctx context.Context, tripID string) (*models.Settings, error) {
	return e.store.GetSettings(ctx, tripID)
}

// UpdateSettings changes the default buffer rate and the trip name. Zero
// values leave the current setting unchanged.
func (e *Engine) UpdateSettings(ctx context.Context, tripID string, bufferRate float64, tripName string) (*models.Settings, error) {
	if bufferRate < 0 {
		return nil, fmt.Errorf("%w: buffer rate %v", ErrInvalidInput, bufferRate)
	}
	settings, err := e.store.GetSettings(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if bufferRate > 0 {
		settings.DefaultBufferRate = bufferRate
	}
	if name := strings.TrimSpace(tripName); name != "" {
		settings.TripName = name
	}
	if err := e.store.UpdateSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return settings, nil
}
