package ledger

import (
	"context"
	"testing"

	"isuride/internal/domain/apperr"
	"isuride/internal/domain/geo"
	"isuride/internal/domain/ride"
	"isuride/internal/domain/user"
	"isuride/internal/general/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*memstore.Store, *Ledger) {
	t.Helper()
	store := memstore.New()
	repos := store.Repositories()

	u, err := user.NewUser("u1", "u1", "F", "L", "2000-01-01", "c1")
	require.NoError(t, err)
	r, err := ride.NewRide("r1", "u1", geo.Coordinate{}, geo.Coordinate{Latitude: 1})
	require.NoError(t, err)

	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repos.Users.Create(ctx, u); err != nil {
			return err
		}
		return repos.Rides.Create(ctx, r)
	}))
	return store, New(repos.Statuses)
}

func TestLedger_FullLifecycle(t *testing.T) {
	store, l := setup(t)

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := l.Start(ctx, "r1")
		require.NoError(t, err)

		for _, next := range ride.Lifecycle[1:] {
			_, err := l.Record(ctx, "r1", next)
			require.NoError(t, err, "record %s", next)

			current, err := l.Current(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, next, current)
		}

		history, err := l.History(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, history, len(ride.Lifecycle))
		for i, e := range history {
			assert.Equal(t, ride.Lifecycle[i], e.Status)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLedger_RejectsSkipsAndRepeats(t *testing.T) {
	store, l := setup(t)

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := l.Start(ctx, "r1")
		require.NoError(t, err)

		for _, bad := range []ride.Status{ride.StatusMatching, ride.StatusPickup, ride.StatusCompleted, ride.StatusCancelled} {
			_, err := l.Record(ctx, "r1", bad)
			assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err), "status %s", bad)
		}

		_, err = l.Start(ctx, "r1")
		assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

		history, err := l.History(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestLedger_NoEventsIsInternal(t *testing.T) {
	store, l := setup(t)

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := l.Current(ctx, "r1")
		return err
	})
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestLedger_TerminalStatusAcceptsNothing(t *testing.T) {
	store, l := setup(t)

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := l.Start(ctx, "r1")
		require.NoError(t, err)
		for _, next := range ride.Lifecycle[1:] {
			_, err := l.Record(ctx, "r1", next)
			require.NoError(t, err)
		}
		for _, st := range ride.Lifecycle {
			_, err := l.Record(ctx, "r1", st)
			assert.Error(t, err)
		}
		return nil
	})
	require.NoError(t, err)
}
