// Package ledger records ride status events and derives a ride's current status.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/ride"
	"isuride/internal/general/metrics"
	"isuride/internal/ports"

	"github.com/google/uuid"
)

// Ledger is the append-only status log of every ride. Methods run inside a UnitOfWork transaction.
type Ledger struct {
	statuses ports.RideStatusRepository
	newID    func() string
}

// New wires a Ledger to the status repository.
func New(statuses ports.RideStatusRepository) *Ledger {
	return &Ledger{
		statuses: statuses,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Start records the initial MATCHING event of a freshly created ride.
func (ledger *Ledger) Start(ctx context.Context, rideID string) (*ride.StatusEvent, error) {
	_, err := ledger.statuses.Latest(ctx, rideID)
	if err == nil {
		return nil, apperr.InvalidTransition("ride already has a status")
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("latest status: %w", err)
	}
	return ledger.append(ctx, rideID, ride.StatusMatching)
}

// Current returns the status of the ride's latest event. A ride without events
// violates the creation invariant and yields an internal error.
func (ledger *Ledger) Current(ctx context.Context, rideID string) (ride.Status, error) {
	e, err := ledger.statuses.Latest(ctx, rideID)
	if errors.Is(err, ports.ErrNotFound) {
		return "", apperr.Internal("ride has no status events", fmt.Errorf("ride %s", rideID))
	}
	if err != nil {
		return "", fmt.Errorf("latest status: %w", err)
	}
	return e.Status, nil
}

// Record appends next if the transition table allows it from the current status.
func (ledger *Ledger) Record(ctx context.Context, rideID string, next ride.Status) (*ride.StatusEvent, error) {
	current, err := ledger.Current(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !current.CanTransitionTo(next) {
		return nil, apperr.InvalidTransition(fmt.Sprintf("cannot move ride from %s to %s", current, next))
	}
	return ledger.append(ctx, rideID, next)
}

// History returns the ride's events in creation order.
func (ledger *Ledger) History(ctx context.Context, rideID string) ([]ride.StatusEvent, error) {
	events, err := ledger.statuses.List(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	return events, nil
}

func (ledger *Ledger) append(ctx context.Context, rideID string, status ride.Status) (*ride.StatusEvent, error) {
	e, err := ride.NewStatusEvent(ledger.newID(), rideID, status)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := ledger.statuses.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append %s: %w", status, err)
	}
	metrics.RideStatusRecorded.WithLabelValues(status.String()).Inc()
	return e, nil
}
