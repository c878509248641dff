// Package memstore is an in-memory implementation of the repository ports.
//
// Transactions are serialized behind one mutex and rolled back by restoring a
// snapshot, so row locks are implied by the global lock. It backs service tests
// and the dispatch service's --storage=memory mode.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"isuride/internal/domain/chair"
	"isuride/internal/domain/coupon"
	"isuride/internal/domain/owner"
	"isuride/internal/domain/ride"
	"isuride/internal/domain/user"
	"isuride/internal/ports"
)

// ErrNoTx is returned when a repository is used outside WithinTx.
var ErrNoTx = errors.New("no transaction in context: call this repository within UnitOfWork.WithinTx")

type txKey struct{}

type state struct {
	users     map[string]user.User
	tokens    map[string]user.PaymentToken
	owners    map[string]owner.Owner
	chairs    map[string]chair.Chair
	locations []chair.Location
	rides     map[string]ride.Ride
	statuses  []ride.StatusEvent
	coupons   []coupon.Coupon

	clock time.Time
}

// now returns a timestamp strictly greater than any previously handed out,
// so creation order is total even when the wall clock does not advance.
func (st *state) now() time.Time {
	t := time.Now().UTC()
	if !t.After(st.clock) {
		t = st.clock.Add(time.Microsecond)
	}
	st.clock = t
	return t
}

func newState() *state {
	return &state{
		users:  make(map[string]user.User),
		tokens: make(map[string]user.PaymentToken),
		owners: make(map[string]owner.Owner),
		chairs: make(map[string]chair.Chair),
		rides:  make(map[string]ride.Ride),
	}
}

// clone copies every table. Pointer fields are never written through, so
// copying the structs is enough.
func (st *state) clone() *state {
	out := &state{
		users:     make(map[string]user.User, len(st.users)),
		tokens:    make(map[string]user.PaymentToken, len(st.tokens)),
		owners:    make(map[string]owner.Owner, len(st.owners)),
		chairs:    make(map[string]chair.Chair, len(st.chairs)),
		rides:     make(map[string]ride.Ride, len(st.rides)),
		locations: append([]chair.Location(nil), st.locations...),
		statuses:  append([]ride.StatusEvent(nil), st.statuses...),
		coupons:   append([]coupon.Coupon(nil), st.coupons...),
		clock:     st.clock,
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.tokens {
		out.tokens[k] = v
	}
	for k, v := range st.owners {
		out.owners[k] = v
	}
	for k, v := range st.chairs {
		out.chairs[k] = v
	}
	for k, v := range st.rides {
		out.rides[k] = v
	}
	return out
}

// Store holds all tables and implements ports.UnitOfWork.
type Store struct {
	mu    sync.Mutex
	state *state
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn with the store locked. A returned error or a panic restores
// the state seen when the transaction began. Nested calls join the outer transaction.
func (store *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) == store {
		return fn(ctx)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	snapshot := store.state.clone()
	defer func() {
		if p := recover(); p != nil {
			store.state = snapshot
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, store)); err != nil {
		store.state = snapshot
		return err
	}
	return nil
}

// tx returns the live state when ctx carries this store's transaction.
func (store *Store) tx(ctx context.Context) (*state, error) {
	if ctx.Value(txKey{}) != store {
		return nil, ErrNoTx
	}
	return store.state, nil
}

// Repositories bundles every repository of the store.
type Repositories = ports.Repositories

// Repositories returns repository views bound to the store.
func (store *Store) Repositories() Repositories {
	return Repositories{
		Users:         &userRepo{store},
		PaymentTokens: &tokenRepo{store},
		Owners:        &ownerRepo{store},
		Chairs:        &chairRepo{store},
		Locations:     &locationRepo{store},
		Rides:         &rideRepo{store},
		Statuses:      &statusRepo{store},
		Coupons:       &couponRepo{store},
	}
}

func sortRidesByCreated(rides []ride.Ride) {
	sort.SliceStable(rides, func(i, j int) bool {
		return rides[i].CreatedAt.Before(rides[j].CreatedAt)
	})
}
