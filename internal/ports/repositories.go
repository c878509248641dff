package ports

import (
	"context"
	"errors"
	"time"

	"isuride/internal/domain/chair"
	"isuride/internal/domain/coupon"
	"isuride/internal/domain/owner"
	"isuride/internal/domain/ride"
	"isuride/internal/domain/user"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("not found")

// UnitOfWork interface is used to manage transactions across multiple repository operations.
//
// Repositories only run inside WithinTx. Methods named Lock* take a row lock
// (SELECT ... FOR UPDATE) held until the transaction ends. Transactions that lock
// more than one kind of row acquire them in this order:
//
//	user -> coupon -> ride -> ride_status -> chair
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository manages riders.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	// LockByID serializes operations of one rider (ride creation, coupon selection).
	LockByID(ctx context.Context, id string) (*user.User, error)
	// LockByInvitationCode locks the referring rider so redemptions of one code are serialized.
	LockByInvitationCode(ctx context.Context, code string) (*user.User, error)
}

// PaymentTokenRepository keeps one active gateway token per rider.
type PaymentTokenRepository interface {
	Upsert(ctx context.Context, t *user.PaymentToken) error
	GetByUser(ctx context.Context, userID string) (*user.PaymentToken, error)
}

// OwnerRepository manages chair owners.
type OwnerRepository interface {
	Create(ctx context.Context, o *owner.Owner) error
	GetByID(ctx context.Context, id string) (*owner.Owner, error)
	GetByChairRegisterToken(ctx context.Context, token string) (*owner.Owner, error)
}

// CouponRepository manages discount grants.
type CouponRepository interface {
	Create(ctx context.Context, c *coupon.Coupon) error
	// LockUnusedByCode locks the rider's unused coupon with the given code.
	LockUnusedByCode(ctx context.Context, userID, code string) (*coupon.Coupon, error)
	// LockOldestUnused locks the rider's unused coupon with the oldest grant time.
	LockOldestUnused(ctx context.Context, userID string) (*coupon.Coupon, error)
	// FindUnusedByCode and FindOldestUnused are the non-locking variants used for previews.
	FindUnusedByCode(ctx context.Context, userID, code string) (*coupon.Coupon, error)
	FindOldestUnused(ctx context.Context, userID string) (*coupon.Coupon, error)
	// MarkUsed attaches the coupon to a ride. It fails if the coupon is already used.
	MarkUsed(ctx context.Context, userID, code, rideID string) error
	GetByRide(ctx context.Context, rideID string) (*coupon.Coupon, error)
	CountByCode(ctx context.Context, code string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]coupon.Coupon, error)
}

// RideRepository manages rides.
type RideRepository interface {
	Create(ctx context.Context, r *ride.Ride) error
	GetByID(ctx context.Context, id string) (*ride.Ride, error)
	LockByID(ctx context.Context, id string) (*ride.Ride, error)
	// LockOldestUnmatched locks the oldest ride without a chair, skipping rides locked by others.
	LockOldestUnmatched(ctx context.Context) (*ride.Ride, error)
	AssignChair(ctx context.Context, rideID, chairID string) error
	SetEvaluation(ctx context.Context, rideID string, evaluation int) error
	MarkSettled(ctx context.Context, rideID string, at time.Time) error
	LatestForUser(ctx context.Context, userID string) (*ride.Ride, error)
	// LatestForChair returns the chair's most recently updated ride.
	LatestForChair(ctx context.Context, chairID string) (*ride.Ride, error)
	// ListByUser returns the rider's rides ordered by creation time, oldest first.
	ListByUser(ctx context.Context, userID string) ([]ride.Ride, error)
	ListByChair(ctx context.Context, chairID string) ([]ride.Ride, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// RideStatusRepository is the append-only status event log.
type RideStatusRepository interface {
	// Append stores the event, assigning a creation time strictly greater than the ride's previous event.
	Append(ctx context.Context, e *ride.StatusEvent) error
	// Latest returns the event with the greatest creation time.
	Latest(ctx context.Context, rideID string) (*ride.StatusEvent, error)
	List(ctx context.Context, rideID string) ([]ride.StatusEvent, error)
	// LockOldestUndelivered locks the oldest event whose marker for channel is unset.
	LockOldestUndelivered(ctx context.Context, rideID string, channel ride.Channel) (*ride.StatusEvent, error)
	MarkDelivered(ctx context.Context, eventID string, channel ride.Channel, at time.Time) error
}

// ChairRepository manages chairs.
type ChairRepository interface {
	Create(ctx context.Context, c *chair.Chair) error
	GetByID(ctx context.Context, id string) (*chair.Chair, error)
	// LockFreeByID locks the chair only if it is active, not busy and not
	// locked by another transaction; otherwise it returns ErrNotFound without waiting.
	LockFreeByID(ctx context.Context, id string) (*chair.Chair, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetBusy(ctx context.Context, id string, busy bool) error
	// RandomActive draws one active chair uniformly at random.
	RandomActive(ctx context.Context) (*chair.Chair, error)
	// ListAvailable returns active chairs that are not busy.
	ListAvailable(ctx context.Context) ([]chair.Chair, error)
}

// ChairLocationRepository is the append-only position history.
type ChairLocationRepository interface {
	Append(ctx context.Context, l *chair.Location) error
	Latest(ctx context.Context, chairID string) (*chair.Location, error)
}

// Repositories bundles one implementation of every repository.
type Repositories struct {
	Users         UserRepository
	PaymentTokens PaymentTokenRepository
	Owners        OwnerRepository
	Chairs        ChairRepository
	Locations     ChairLocationRepository
	Rides         RideRepository
	Statuses      RideStatusRepository
	Coupons       CouponRepository
}
