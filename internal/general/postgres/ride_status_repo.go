package postgres

import (
	"context"
	"fmt"
	"time"

	"isuride/internal/domain/ride"
	"isuride/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RideStatusRepo persists the append-only ride status log.
type RideStatusRepo struct{}

// NewRideStatusRepo constructs a new RideStatusRepo.
func NewRideStatusRepo() ports.RideStatusRepository {
	return &RideStatusRepo{}
}

const statusColumns = `id, ride_id, status, created_at, app_sent_at, chair_sent_at`

func scanStatusEvent(row pgx.Row) (*ride.StatusEvent, error) {
	var (
		out    ride.StatusEvent
		status string
	)
	if err := row.Scan(&out.ID, &out.RideID, &status, &out.CreatedAt, &out.RiderSentAt, &out.ChairSentAt); err != nil {
		return nil, notFound(err)
	}
	out.Status = ride.Status(status)
	return &out, nil
}

// deliveryColumn returns the marker column of a channel.
func deliveryColumn(channel ride.Channel) (string, error) {
	switch channel {
	case ride.ChannelRider:
		return "app_sent_at", nil
	case ride.ChannelChair:
		return "chair_sent_at", nil
	default:
		return "", fmt.Errorf("unknown notification channel %q", channel)
	}
}

// Append inserts a status event. Its created_at is the later of the current
// clock and one microsecond after the ride's previous event.
func (repo *RideStatusRepo) Append(ctx context.Context, e *ride.StatusEvent) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO ride_statuses (id, ride_id, status, created_at)
		VALUES ($1, $2, $3, GREATEST(
			clock_timestamp(),
			(SELECT max(created_at) FROM ride_statuses WHERE ride_id = $2) + interval '1 microsecond'
		))
		RETURNING created_at
	`, e.ID, e.RideID, e.Status.String()).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ride status: %w", err)
	}
	return nil
}

// Latest returns the event with the greatest creation time.
func (repo *RideStatusRepo) Latest(ctx context.Context, rideID string) (*ride.StatusEvent, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanStatusEvent(tx.QueryRow(ctx, `
		SELECT `+statusColumns+` FROM ride_statuses WHERE ride_id = $1 ORDER BY created_at DESC LIMIT 1
	`, rideID))
}

// List returns the ride's events in creation order.
func (repo *RideStatusRepo) List(ctx context.Context, rideID string) ([]ride.StatusEvent, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+statusColumns+` FROM ride_statuses WHERE ride_id = $1 ORDER BY created_at
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("query ride statuses: %w", err)
	}
	defer rows.Close()

	var out []ride.StatusEvent
	for rows.Next() {
		e, err := scanStatusEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride status: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// LockOldestUndelivered locks the oldest event of the ride not yet delivered to channel.
func (repo *RideStatusRepo) LockOldestUndelivered(ctx context.Context, rideID string, channel ride.Channel) (*ride.StatusEvent, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	col, err := deliveryColumn(channel)
	if err != nil {
		return nil, err
	}

	return scanStatusEvent(tx.QueryRow(ctx, `
		SELECT `+statusColumns+`
		FROM ride_statuses
		WHERE ride_id = $1 AND `+col+` IS NULL
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`, rideID))
}

// MarkDelivered sets the channel's delivered-at marker. A marker is only set once.
func (repo *RideStatusRepo) MarkDelivered(ctx context.Context, eventID string, channel ride.Channel, at time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}
	col, err := deliveryColumn(channel)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE ride_statuses SET `+col+` = $2 WHERE id = $1 AND `+col+` IS NULL
	`, eventID, at)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}
