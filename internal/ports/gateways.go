package ports

import (
	"context"
	"time"

	"isuride/internal/domain/chair"
	"isuride/internal/domain/ride"
)

// Payment is one record of the gateway's payment list.
type Payment struct {
	Amount int    `json:"amount"`
	Status string `json:"status"`
}

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	// PostPayment submits a charge. accepted is false when the gateway answered
	// with anything but its success code, which leaves the outcome ambiguous.
	PostPayment(ctx context.Context, token string, amount int) (accepted bool, err error)
	// ListPayments returns the token's payments in the order they were made.
	ListPayments(ctx context.Context, token string) ([]Payment, error)
}

// StatusPublisher fans recorded status events out to other services.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, rideID string, status ride.Status, at time.Time) error
}

// LocationPublisher streams chair location samples.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, loc chair.Location) error
}

// LocationCache keeps the latest known coordinate per chair.
// Get returns ErrNotFound on a miss.
type LocationCache interface {
	Put(ctx context.Context, loc chair.Location) error
	Get(ctx context.Context, chairID string) (*chair.Location, error)
}

// MatchLock keeps concurrent triggers from running matching rounds in parallel.
type MatchLock interface {
	// TryLock returns ok=false if another holder owns the lock.
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}
