package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/ride"
	"isuride/internal/ports"

	"github.com/google/uuid"
)

// newID returns a time-ordered UUIDv7.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// secureRandomHex returns 2n hex characters from crypto/rand.
func secureRandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// notFoundAs turns a repository miss into a client-facing not_found.
func notFoundAs(err error, msg string) error {
	if errors.Is(err, ports.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

// publishStatuses fans committed events out. Failures are logged only: the
// ledger is the source of truth and pollers never depend on the broker.
func (service *dispatchService) publishStatuses(ctx context.Context, events ...*ride.StatusEvent) {
	if service.pub == nil {
		return
	}
	for _, e := range events {
		if e == nil {
			continue
		}
		if err := service.pub.PublishStatus(ctx, e.RideID, e.Status, e.CreatedAt); err != nil {
			service.logger.Error(ctx, "ride_status_publish_failed", "Failed to publish ride status", err, map[string]any{
				"ride_id": e.RideID,
				"status":  e.Status.String(),
			})
		}
	}
}
