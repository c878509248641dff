package postgres

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"isuride/internal/domain/chair"
	"isuride/internal/domain/coupon"
	"isuride/internal/domain/geo"
	"isuride/internal/domain/owner"
	"isuride/internal/domain/ride"
	"isuride/internal/domain/user"
	"isuride/internal/general/logger"
	"isuride/internal/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("ISURIDE_TEST_DSN")
	if dsn == "" {
		t.Skip("ISURIDE_TEST_DSN not set; skipping DB-backed repository tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool, logger.NewWithWriter("test", io.Discard)))

	_, err = pool.Exec(ctx, `
		TRUNCATE coupons, ride_statuses, rides, chair_locations, chairs, owners, payment_tokens, users
	`)
	require.NoError(t, err)

	return pool
}

func newID() string { return uuid.Must(uuid.NewV7()).String() }

func seedRider(t *testing.T, ctx context.Context, uow ports.UnitOfWork) *user.User {
	t.Helper()
	u, err := user.NewUser(newID(), "user-"+newID(), "Taro", "Yamada", "2000-01-01", newID())
	require.NoError(t, err)
	require.NoError(t, uow.WithinTx(ctx, func(ctx context.Context) error {
		return NewUserRepo().Create(ctx, u)
	}))
	return u
}

func seedChair(t *testing.T, ctx context.Context, uow ports.UnitOfWork, active bool) *chair.Chair {
	t.Helper()
	o, err := owner.NewOwner(newID(), "owner-"+newID(), newID())
	require.NoError(t, err)
	c, err := chair.NewChair(newID(), o.ID, "chair", "model-a")
	require.NoError(t, err)
	c.IsActive = active
	require.NoError(t, uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := NewOwnerRepo().Create(ctx, o); err != nil {
			return err
		}
		return NewChairRepo().Create(ctx, c)
	}))
	return c
}

func TestRideStatusRepo_StrictlyIncreasingTimestamps(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t)
	uow := NewUnitOfWork(pool)
	rides, statuses := NewRideRepo(), NewRideStatusRepo()

	u := seedRider(t, ctx, uow)
	r, err := ride.NewRide(newID(), u.ID, geo.Coordinate{}, geo.Coordinate{Latitude: 10})
	require.NoError(t, err)

	// appended back to back inside one transaction
	err = uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := rides.Create(ctx, r); err != nil {
			return err
		}
		for _, st := range ride.Lifecycle {
			e, err := ride.NewStatusEvent(newID(), r.ID, st)
			if err != nil {
				return err
			}
			if err := statuses.Append(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var events []ride.StatusEvent
	require.NoError(t, uow.WithinTx(ctx, func(ctx context.Context) error {
		events, err = statuses.List(ctx, r.ID)
		return err
	}))
	require.Len(t, events, len(ride.Lifecycle))
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i].CreatedAt.After(events[i-1].CreatedAt))
		assert.Equal(t, ride.Lifecycle[i], events[i].Status)
	}
}

func TestRideStatusRepo_DeliveryMarkers(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t)
	uow := NewUnitOfWork(pool)
	rides, statuses := NewRideRepo(), NewRideStatusRepo()

	u := seedRider(t, ctx, uow)
	r, _ := ride.NewRide(newID(), u.ID, geo.Coordinate{}, geo.Coordinate{Latitude: 1})
	first, _ := ride.NewStatusEvent(newID(), r.ID, ride.StatusMatching)
	second, _ := ride.NewStatusEvent(newID(), r.ID, ride.StatusEnroute)

	require.NoError(t, uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := rides.Create(ctx, r); err != nil {
			return err
		}
		if err := statuses.Append(ctx, first); err != nil {
			return err
		}
		return statuses.Append(ctx, second)
	}))

	err := uow.WithinTx(ctx, func(ctx context.Context) error {
		e, err := statuses.LockOldestUndelivered(ctx, r.ID, ride.ChannelChair)
		require.NoError(t, err)
		assert.Equal(t, first.ID, e.ID)
		return statuses.MarkDelivered(ctx, e.ID, ride.ChannelChair, time.Now())
	})
	require.NoError(t, err)

	err = uow.WithinTx(ctx, func(ctx context.Context) error {
		// the rider channel is independent
		e, err := statuses.LockOldestUndelivered(ctx, r.ID, ride.ChannelRider)
		require.NoError(t, err)
		assert.Equal(t, first.ID, e.ID)

		e, err = statuses.LockOldestUndelivered(ctx, r.ID, ride.ChannelChair)
		require.NoError(t, err)
		assert.Equal(t, second.ID, e.ID)

		// a marker is set at most once
		err = statuses.MarkDelivered(ctx, first.ID, ride.ChannelChair, time.Now())
		assert.ErrorIs(t, err, ports.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestCouponRepo_ConcurrentMarkUsed(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t)
	uow := NewUnitOfWork(pool)
	coupons := NewCouponRepo()

	u := seedRider(t, ctx, uow)
	require.NoError(t, uow.WithinTx(ctx, func(ctx context.Context) error {
		return coupons.Create(ctx, coupon.New(u.ID, "CP_NEW2024", 3000, time.Now()))
	}))

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- uow.WithinTx(ctx, func(ctx context.Context) error {
				c, err := coupons.LockOldestUnused(ctx, u.ID)
				if err != nil {
					return err
				}
				return coupons.MarkUsed(ctx, c.UserID, c.Code, newID())
			})
		}()
	}

	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, success)
}

func TestRideRepo_LockOldestUnmatchedAndAssign(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t)
	uow := NewUnitOfWork(pool)
	rides, chairs := NewRideRepo(), NewChairRepo()

	u := seedRider(t, ctx, uow)
	c := seedChair(t, ctx, uow, true)

	older, _ := ride.NewRide(newID(), u.ID, geo.Coordinate{}, geo.Coordinate{Latitude: 1})
	newer, _ := ride.NewRide(newID(), u.ID, geo.Coordinate{}, geo.Coordinate{Latitude: 2})
	require.NoError(t, uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := rides.Create(ctx, older); err != nil {
			return err
		}
		return rides.Create(ctx, newer)
	}))

	err := uow.WithinTx(ctx, func(ctx context.Context) error {
		r, err := rides.LockOldestUnmatched(ctx)
		require.NoError(t, err)
		assert.Equal(t, older.ID, r.ID)

		got, err := chairs.RandomActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)

		if err := rides.AssignChair(ctx, r.ID, c.ID); err != nil {
			return err
		}
		assert.ErrorIs(t, rides.AssignChair(ctx, r.ID, c.ID), ride.ErrChairAlreadyAssign)
		return chairs.SetBusy(ctx, c.ID, true)
	})
	require.NoError(t, err)

	err = uow.WithinTx(ctx, func(ctx context.Context) error {
		r, err := rides.LockOldestUnmatched(ctx)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, r.ID)

		available, err := chairs.ListAvailable(ctx)
		require.NoError(t, err)
		assert.Empty(t, available)
		return nil
	})
	require.NoError(t, err)
}

func TestRepos_NotFound(t *testing.T) {
	ctx := context.Background()
	pool := setupTestPool(t)
	uow := NewUnitOfWork(pool)

	err := uow.WithinTx(ctx, func(ctx context.Context) error {
		_, err := NewRideRepo().GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		_, err = NewUserRepo().LockByInvitationCode(ctx, "missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		_, err = NewPaymentTokenRepo().GetByUser(ctx, "missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		_, err = NewChairRepo().RandomActive(ctx)
		assert.ErrorIs(t, err, ports.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMustTxFromContext_OutsideUnitOfWork(t *testing.T) {
	_, err := MustTxFromContext(context.Background())
	assert.Error(t, err)
}
