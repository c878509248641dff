package postgres

import (
	"context"
	"fmt"
	"time"

	"isuride/internal/domain/ride"
	"isuride/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RideRepo persists rides using pgx and plain SQL.
type RideRepo struct{}

// NewRideRepo constructs a new RideRepo.
func NewRideRepo() ports.RideRepository {
	return &RideRepo{}
}

const rideColumns = `
	id, user_id, chair_id,
	pickup_latitude, pickup_longitude, destination_latitude, destination_longitude,
	evaluation, settled_at, created_at, updated_at`

func scanRide(row pgx.Row) (*ride.Ride, error) {
	var out ride.Ride
	err := row.Scan(
		&out.ID, &out.RiderID, &out.ChairID,
		&out.Pickup.Latitude, &out.Pickup.Longitude, &out.Destination.Latitude, &out.Destination.Longitude,
		&out.Evaluation, &out.SettledAt, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func collectRides(rows pgx.Rows) ([]ride.Ride, error) {
	defer rows.Close()

	var out []ride.Ride
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		out = append(out, *rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Create inserts a new unmatched ride row.
func (repo *RideRepo) Create(ctx context.Context, r *ride.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO rides (
			id, user_id, pickup_latitude, pickup_longitude,
			destination_latitude, destination_longitude
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`,
		r.ID,
		r.RiderID,
		r.Pickup.Latitude,
		r.Pickup.Longitude,
		r.Destination.Latitude,
		r.Destination.Longitude,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

// GetByID fetches a ride by primary key.
func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanRide(tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id))
}

// LockByID fetches a ride and holds its row lock until the transaction ends.
func (repo *RideRepo) LockByID(ctx context.Context, id string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanRide(tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, id))
}

// LockOldestUnmatched locks the oldest ride without a chair.
// Rows already locked by a concurrent matching round are skipped.
func (repo *RideRepo) LockOldestUnmatched(ctx context.Context) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanRide(tx.QueryRow(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE chair_id IS NULL
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`))
}

// AssignChair sets chair_id once. A ride that already has a chair is left untouched.
func (repo *RideRepo) AssignChair(ctx context.Context, rideID, chairID string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET chair_id = $2, updated_at = clock_timestamp()
		WHERE id = $1 AND chair_id IS NULL
	`, rideID, chairID)
	if err != nil {
		return fmt.Errorf("assign chair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ride.ErrChairAlreadyAssign
	}
	return nil
}

// SetEvaluation stores the rider's rating.
func (repo *RideRepo) SetEvaluation(ctx context.Context, rideID string, evaluation int) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides SET evaluation = $2, updated_at = clock_timestamp() WHERE id = $1
	`, rideID, evaluation)
	if err != nil {
		return fmt.Errorf("set evaluation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// MarkSettled stamps the time the payment gateway confirmed the charge.
func (repo *RideRepo) MarkSettled(ctx context.Context, rideID string, at time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `UPDATE rides SET settled_at = $2 WHERE id = $1`, rideID, at)
	if err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// LatestForUser returns the rider's most recently created ride.
func (repo *RideRepo) LatestForUser(ctx context.Context, userID string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanRide(tx.QueryRow(ctx, `
		SELECT `+rideColumns+` FROM rides WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1
	`, userID))
}

// LatestForChair returns the chair's most recently updated ride.
func (repo *RideRepo) LatestForChair(ctx context.Context, chairID string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanRide(tx.QueryRow(ctx, `
		SELECT `+rideColumns+` FROM rides WHERE chair_id = $1 ORDER BY updated_at DESC LIMIT 1
	`, chairID))
}

// ListByUser returns the rider's rides, oldest first.
func (repo *RideRepo) ListByUser(ctx context.Context, userID string) ([]ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+rideColumns+` FROM rides WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query rides by user: %w", err)
	}
	return collectRides(rows)
}

// ListByChair returns every ride ever assigned to the chair, newest first.
func (repo *RideRepo) ListByChair(ctx context.Context, chairID string) ([]ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+rideColumns+` FROM rides WHERE chair_id = $1 ORDER BY updated_at DESC
	`, chairID)
	if err != nil {
		return nil, fmt.Errorf("query rides by chair: %w", err)
	}
	return collectRides(rows)
}

// CountByUser returns how many rides the rider has ever created.
func (repo *RideRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM rides WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rides: %w", err)
	}
	return n, nil
}
