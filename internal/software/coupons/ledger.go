// Package coupons selects and consumes rider discount coupons.
package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/coupon"
	"isuride/internal/ports"
)

// Policy holds the configured coupon codes, discounts and the invitation cap.
type Policy struct {
	SignupCode     string
	SignupDiscount int
	InviteDiscount int
	RewardDiscount int
	InvitationCap  int
}

// Ledger grants coupons and attaches at most one of them to each ride.
// Every method must run inside a UnitOfWork transaction.
type Ledger struct {
	policy  Policy
	users   ports.UserRepository
	coupons ports.CouponRepository
	now     func() time.Time
}

// NewLedger wires a Ledger to its repositories.
func NewLedger(policy Policy, users ports.UserRepository, coupons ports.CouponRepository) *Ledger {
	return &Ledger{
		policy:  policy,
		users:   users,
		coupons: coupons,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GrantSignup gives a newly registered rider the signup coupon.
func (ledger *Ledger) GrantSignup(ctx context.Context, userID string) error {
	c := coupon.New(userID, ledger.policy.SignupCode, ledger.policy.SignupDiscount, ledger.now())
	if err := ledger.coupons.Create(ctx, c); err != nil {
		return fmt.Errorf("grant signup coupon: %w", err)
	}
	return nil
}

// RedeemInvitation grants the invite coupon to the new rider and the reward
// coupon to the referrer. The referrer row is locked first so concurrent
// redemptions of one code count each other.
func (ledger *Ledger) RedeemInvitation(ctx context.Context, newUserID, invitationCode string) error {
	invitationCode = strings.TrimSpace(invitationCode)

	// lock the referrer
	inviter, err := ledger.users.LockByInvitationCode(ctx, invitationCode)
	if errors.Is(err, ports.ErrNotFound) {
		return apperr.Validation("invitation code is not valid")
	}
	if err != nil {
		return fmt.Errorf("lock inviter: %w", err)
	}
	if inviter.ID == newUserID {
		return apperr.Validation("invitation code is not valid")
	}

	// check the issuance cap
	inviteCode := coupon.InviteCode(invitationCode)
	issued, err := ledger.coupons.CountByCode(ctx, inviteCode)
	if err != nil {
		return fmt.Errorf("count invite coupons: %w", err)
	}
	if issued >= ledger.policy.InvitationCap {
		return apperr.Conflict("invitation code has reached its usage limit")
	}

	now := ledger.now()

	// invite coupon for the new rider
	if err := ledger.coupons.Create(ctx, coupon.New(newUserID, inviteCode, ledger.policy.InviteDiscount, now)); err != nil {
		return fmt.Errorf("grant invite coupon: %w", err)
	}

	// reward coupon for the referrer, with a code unique among the referrer's coupons
	rewardCode, err := ledger.uniqueRewardCode(ctx, inviter.ID, invitationCode, now)
	if err != nil {
		return err
	}
	if err := ledger.coupons.Create(ctx, coupon.New(inviter.ID, rewardCode, ledger.policy.RewardDiscount, now)); err != nil {
		return fmt.Errorf("grant reward coupon: %w", err)
	}
	return nil
}

func (ledger *Ledger) uniqueRewardCode(ctx context.Context, inviterID, invitationCode string, at time.Time) (string, error) {
	owned, err := ledger.coupons.ListByUser(ctx, inviterID)
	if err != nil {
		return "", fmt.Errorf("list inviter coupons: %w", err)
	}
	taken := make(map[string]bool, len(owned))
	for _, c := range owned {
		taken[c.Code] = true
	}

	code := coupon.RewardCode(invitationCode, at)
	for taken[code] {
		at = at.Add(time.Millisecond)
		code = coupon.RewardCode(invitationCode, at)
	}
	return code, nil
}

// AttachForRide selects the rider's coupon for a ride under row lock and
// consumes it. On the rider's first ride the signup coupon is preferred.
// It returns nil when the rider has no unused coupon.
func (ledger *Ledger) AttachForRide(ctx context.Context, userID, rideID string, firstRide bool) (*coupon.Coupon, error) {
	c, err := ledger.selectCoupon(ctx, userID, firstRide, true)
	if err != nil || c == nil {
		return nil, err
	}

	if err := ledger.coupons.MarkUsed(ctx, c.UserID, c.Code, rideID); err != nil {
		return nil, fmt.Errorf("consume coupon %s: %w", c.Code, err)
	}
	c.UsedBy = &rideID
	return c, nil
}

// Preview returns the coupon AttachForRide would pick, without locking or consuming it.
func (ledger *Ledger) Preview(ctx context.Context, userID string, firstRide bool) (*coupon.Coupon, error) {
	return ledger.selectCoupon(ctx, userID, firstRide, false)
}

func (ledger *Ledger) selectCoupon(ctx context.Context, userID string, firstRide, lock bool) (*coupon.Coupon, error) {
	byCode, oldest := ledger.coupons.FindUnusedByCode, ledger.coupons.FindOldestUnused
	if lock {
		byCode, oldest = ledger.coupons.LockUnusedByCode, ledger.coupons.LockOldestUnused
	}

	if firstRide {
		c, err := byCode(ctx, userID, ledger.policy.SignupCode)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ports.ErrNotFound) {
			return nil, fmt.Errorf("select signup coupon: %w", err)
		}
	}

	c, err := oldest(ctx, userID)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select oldest coupon: %w", err)
	}
	return c, nil
}

// DiscountForRide re-derives the discount from the coupon attached to the ride.
func (ledger *Ledger) DiscountForRide(ctx context.Context, rideID string) (int, error) {
	c, err := ledger.coupons.GetByRide(ctx, rideID)
	if errors.Is(err, ports.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("coupon for ride %s: %w", rideID, err)
	}
	return c.Discount, nil
}
