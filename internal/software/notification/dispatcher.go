// Package notification implements the per-channel read-and-mark poll of ride status events.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/ride"
	"isuride/internal/general/logger"
	"isuride/internal/general/metrics"
	"isuride/internal/ports"
	"isuride/internal/software/coupons"
	"isuride/internal/software/fare"
	"isuride/internal/software/ledger"
)

// DefaultRetryAfter is the poll interval handed to clients.
const DefaultRetryAfter = 30 * time.Millisecond

// ErrNotSent wraps the send error of DeliverRider and DeliverChair. The event
// stays undelivered.
var ErrNotSent = errors.New("notification not sent")

// Dispatcher reports, per channel, the oldest undelivered status event of the
// caller's current ride and marks it delivered in the same transaction.
type Dispatcher struct {
	logger     *logger.Logger
	uow        ports.UnitOfWork
	users      ports.UserRepository
	chairs     ports.ChairRepository
	rides      ports.RideRepository
	statuses   ports.RideStatusRepository
	ledger     *ledger.Ledger
	coupons    *coupons.Ledger
	fare       fare.Calculator
	retryAfter time.Duration
	now        func() time.Time
}

// Deps groups the collaborators of a Dispatcher.
type Deps struct {
	Users    ports.UserRepository
	Chairs   ports.ChairRepository
	Rides    ports.RideRepository
	Statuses ports.RideStatusRepository
	Ledger   *ledger.Ledger
	Coupons  *coupons.Ledger
	Fare     fare.Calculator
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(logger *logger.Logger, uow ports.UnitOfWork, deps Deps, retryAfter time.Duration) ports.NotificationService {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	return &Dispatcher{
		logger:     logger,
		uow:        uow,
		users:      deps.Users,
		chairs:     deps.Chairs,
		rides:      deps.Rides,
		statuses:   deps.Statuses,
		ledger:     deps.Ledger,
		coupons:    deps.Coupons,
		fare:       deps.Fare,
		retryAfter: retryAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// next returns the status to report on channel and whether it came from an
// undelivered event, which is marked delivered before returning.
func (dispatcher *Dispatcher) next(ctx context.Context, rideID string, channel ride.Channel) (ride.Status, bool, error) {
	e, err := dispatcher.statuses.LockOldestUndelivered(ctx, rideID, channel)
	if errors.Is(err, ports.ErrNotFound) {
		current, err := dispatcher.ledger.Current(ctx, rideID)
		return current, false, err
	}
	if err != nil {
		return "", false, fmt.Errorf("oldest undelivered event: %w", err)
	}

	if err := dispatcher.statuses.MarkDelivered(ctx, e.ID, channel, dispatcher.now()); err != nil {
		return "", false, fmt.Errorf("mark delivered: %w", err)
	}
	return e.Status, true, nil
}

// PollRider reports the rider's latest ride.
func (dispatcher *Dispatcher) PollRider(ctx context.Context, userID string) (ports.RiderNotification, error) {
	return dispatcher.pollRider(ctx, userID, nil)
}

// DeliverRider pushes the rider's next undelivered notification through send.
func (dispatcher *Dispatcher) DeliverRider(ctx context.Context, userID string, send func(ports.RiderNotification) error) error {
	_, err := dispatcher.pollRider(ctx, userID, send)
	return err
}

func (dispatcher *Dispatcher) pollRider(ctx context.Context, userID string, send func(ports.RiderNotification) error) (ports.RiderNotification, error) {
	out := ports.RiderNotification{RetryAfterMs: int(dispatcher.retryAfter.Milliseconds())}

	err := dispatcher.uow.WithinTx(ctx, func(txCtx context.Context) error {
		out.Data, out.Delivered = nil, false

		r, err := dispatcher.rides.LatestForUser(txCtx, userID)
		if errors.Is(err, ports.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest ride: %w", err)
		}

		status, delivered, err := dispatcher.next(txCtx, r.ID, ride.ChannelRider)
		if err != nil {
			return err
		}

		discount, err := dispatcher.coupons.DiscountForRide(txCtx, r.ID)
		if err != nil {
			return err
		}

		data := &ports.RiderNotificationData{
			RideID:                r.ID,
			PickupCoordinate:      r.Pickup,
			DestinationCoordinate: r.Destination,
			Fare:                  dispatcher.fare.Total(r.Pickup, r.Destination, discount),
			Status:                status.String(),
			CreatedAt:             r.CreatedAt.UnixMilli(),
			UpdatedAt:             r.UpdatedAt.UnixMilli(),
		}

		if r.ChairID != nil {
			c, err := dispatcher.chairs.GetByID(txCtx, *r.ChairID)
			if errors.Is(err, ports.ErrNotFound) {
				return apperr.Internal("assigned chair is missing", fmt.Errorf("chair %s", *r.ChairID))
			}
			if err != nil {
				return fmt.Errorf("get chair: %w", err)
			}
			stats, err := dispatcher.chairStats(txCtx, c.ID)
			if err != nil {
				return err
			}
			data.Chair = &ports.NotificationChair{ID: c.ID, Name: c.Name, Model: c.Model, Stats: stats}
		}

		out.Data, out.Delivered = data, delivered
		return sendBeforeCommit(delivered, send, out)
	})
	if err != nil {
		if !errors.Is(err, ErrNotSent) {
			dispatcher.logger.Error(ctx, "rider_notification_failed", "Failed to poll rider notification", err, map[string]any{
				"user_id": userID,
			})
		}
		return ports.RiderNotification{}, err
	}
	if out.Delivered {
		metrics.NotificationsDelivered.WithLabelValues(string(ride.ChannelRider), out.Data.Status).Inc()
	}
	return out, nil
}

// PollChair reports the chair's latest ride. Delivering the COMPLETED event to
// the chair drains its last outstanding event, so the chair is freed for matching.
func (dispatcher *Dispatcher) PollChair(ctx context.Context, chairID string) (ports.ChairNotification, error) {
	return dispatcher.pollChair(ctx, chairID, nil)
}

// DeliverChair pushes the chair's next undelivered notification through send.
func (dispatcher *Dispatcher) DeliverChair(ctx context.Context, chairID string, send func(ports.ChairNotification) error) error {
	_, err := dispatcher.pollChair(ctx, chairID, send)
	return err
}

func (dispatcher *Dispatcher) pollChair(ctx context.Context, chairID string, send func(ports.ChairNotification) error) (ports.ChairNotification, error) {
	out := ports.ChairNotification{RetryAfterMs: int(dispatcher.retryAfter.Milliseconds())}

	err := dispatcher.uow.WithinTx(ctx, func(txCtx context.Context) error {
		out.Data, out.Delivered = nil, false

		r, err := dispatcher.rides.LatestForChair(txCtx, chairID)
		if errors.Is(err, ports.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest ride: %w", err)
		}

		status, delivered, err := dispatcher.next(txCtx, r.ID, ride.ChannelChair)
		if err != nil {
			return err
		}

		if delivered && status == ride.StatusCompleted {
			if err := dispatcher.chairs.SetBusy(txCtx, chairID, false); err != nil {
				return fmt.Errorf("free chair: %w", err)
			}
		}

		u, err := dispatcher.users.GetByID(txCtx, r.RiderID)
		if errors.Is(err, ports.ErrNotFound) {
			return apperr.Internal("ride rider is missing", fmt.Errorf("user %s", r.RiderID))
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		out.Data = &ports.ChairNotificationData{
			RideID:                r.ID,
			User:                  ports.NotificationUser{ID: u.ID, Name: u.DisplayName()},
			PickupCoordinate:      r.Pickup,
			DestinationCoordinate: r.Destination,
			Status:                status.String(),
		}
		out.Delivered = delivered
		return sendBeforeCommit(delivered, send, out)
	})
	if err != nil {
		if !errors.Is(err, ErrNotSent) {
			dispatcher.logger.Error(ctx, "chair_notification_failed", "Failed to poll chair notification", err, map[string]any{
				"chair_id": chairID,
			})
		}
		return ports.ChairNotification{}, err
	}
	if out.Delivered {
		metrics.NotificationsDelivered.WithLabelValues(string(ride.ChannelChair), out.Data.Status).Inc()
	}
	return out, nil
}

// sendBeforeCommit hands a newly delivered notification to send inside the
// transaction that marks it delivered.
func sendBeforeCommit[N any](delivered bool, send func(N) error, n N) error {
	if !delivered || send == nil {
		return nil
	}
	if err := send(n); err != nil {
		return fmt.Errorf("%w: %w", ErrNotSent, err)
	}
	return nil
}

// chairStats counts the chair's completed rides that recorded both CARRYING and
// ARRIVED, and averages their evaluations.
func (dispatcher *Dispatcher) chairStats(ctx context.Context, chairID string) (ports.ChairStats, error) {
	rides, err := dispatcher.rides.ListByChair(ctx, chairID)
	if err != nil {
		return ports.ChairStats{}, fmt.Errorf("list chair rides: %w", err)
	}

	var count, total int
	for _, r := range rides {
		if r.Evaluation == nil {
			continue
		}
		history, err := dispatcher.ledger.History(ctx, r.ID)
		if err != nil {
			return ports.ChairStats{}, err
		}

		seen := make(map[ride.Status]bool, len(history))
		for _, e := range history {
			seen[e.Status] = true
		}
		if !seen[ride.StatusCarrying] || !seen[ride.StatusArrived] || !seen[ride.StatusCompleted] {
			continue
		}

		count++
		total += *r.Evaluation
	}

	stats := ports.ChairStats{TotalRidesCount: count}
	if count > 0 {
		stats.TotalEvaluationAvg = float64(total) / float64(count)
	}
	return stats, nil
}
