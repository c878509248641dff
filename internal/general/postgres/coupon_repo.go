package postgres

import (
	"context"
	"fmt"

	"isuride/internal/domain/coupon"
	"isuride/internal/ports"

	"github.com/jackc/pgx/v5"
)

// CouponRepo persists coupons using pgx and plain SQL.
type CouponRepo struct{}

// NewCouponRepo constructs a new CouponRepo.
func NewCouponRepo() ports.CouponRepository {
	return &CouponRepo{}
}

const couponColumns = `user_id, code, discount, created_at, used_by`

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	var out coupon.Coupon
	if err := row.Scan(&out.UserID, &out.Code, &out.Discount, &out.CreatedAt, &out.UsedBy); err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// Create grants a coupon to a rider.
func (repo *CouponRepo) Create(ctx context.Context, c *coupon.Coupon) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO coupons (user_id, code, discount, created_at) VALUES ($1, $2, $3, $4)
	`, c.UserID, c.Code, c.Discount, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// LockUnusedByCode locks the rider's unused coupon with the given code.
func (repo *CouponRepo) LockUnusedByCode(ctx context.Context, userID, code string) (*coupon.Coupon, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanCoupon(tx.QueryRow(ctx, `
		SELECT `+couponColumns+` FROM coupons
		WHERE user_id = $1 AND code = $2 AND used_by IS NULL
		FOR UPDATE
	`, userID, code))
}

// LockOldestUnused locks the rider's unused coupon with the oldest grant time.
func (repo *CouponRepo) LockOldestUnused(ctx context.Context, userID string) (*coupon.Coupon, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanCoupon(tx.QueryRow(ctx, `
		SELECT `+couponColumns+` FROM coupons
		WHERE user_id = $1 AND used_by IS NULL
		ORDER BY created_at, code
		LIMIT 1
		FOR UPDATE
	`, userID))
}

// FindUnusedByCode is LockUnusedByCode without the row lock.
func (repo *CouponRepo) FindUnusedByCode(ctx context.Context, userID, code string) (*coupon.Coupon, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanCoupon(tx.QueryRow(ctx, `
		SELECT `+couponColumns+` FROM coupons
		WHERE user_id = $1 AND code = $2 AND used_by IS NULL
	`, userID, code))
}

// FindOldestUnused is LockOldestUnused without the row lock.
func (repo *CouponRepo) FindOldestUnused(ctx context.Context, userID string) (*coupon.Coupon, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanCoupon(tx.QueryRow(ctx, `
		SELECT `+couponColumns+` FROM coupons
		WHERE user_id = $1 AND used_by IS NULL
		ORDER BY created_at, code
		LIMIT 1
	`, userID))
}

// MarkUsed attaches the coupon to a ride. The update only applies to an unused coupon.
func (repo *CouponRepo) MarkUsed(ctx context.Context, userID, code, rideID string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE coupons SET used_by = $3
		WHERE user_id = $1 AND code = $2 AND used_by IS NULL
	`, userID, code, rideID)
	if err != nil {
		return fmt.Errorf("mark coupon used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// GetByRide returns the coupon attached to a ride.
func (repo *CouponRepo) GetByRide(ctx context.Context, rideID string) (*coupon.Coupon, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanCoupon(tx.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE used_by = $1`, rideID))
}

// CountByCode counts coupons with the code across all riders.
func (repo *CouponRepo) CountByCode(ctx context.Context, code string) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM coupons WHERE code = $1`, code).Scan(&n); err != nil {
		return 0, fmt.Errorf("count coupons: %w", err)
	}
	return n, nil
}

// ListByUser returns every coupon granted to the rider, oldest first.
func (repo *CouponRepo) ListByUser(ctx context.Context, userID string) ([]coupon.Coupon, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 ORDER BY created_at, code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query coupons: %w", err)
	}
	defer rows.Close()

	var out []coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
