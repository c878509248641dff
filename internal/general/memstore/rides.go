package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"isuride/internal/domain/ride"
	"isuride/internal/ports"
)

type rideRepo struct{ store *Store }

func (repo *rideRepo) Create(ctx context.Context, r *ride.Ride) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.users[r.RiderID]; !ok {
		return fmt.Errorf("insert ride: unknown user %s", r.RiderID)
	}
	if _, ok := st.rides[r.ID]; ok {
		return fmt.Errorf("insert ride: duplicate id %s", r.ID)
	}
	now := st.now()
	r.CreatedAt, r.UpdatedAt = now, now
	st.rides[r.ID] = *r
	return nil
}

func (repo *rideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	r, ok := st.rides[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &r, nil
}

func (repo *rideRepo) LockByID(ctx context.Context, id string) (*ride.Ride, error) {
	return repo.GetByID(ctx, id)
}

func (repo *rideRepo) LockOldestUnmatched(ctx context.Context) (*ride.Ride, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	var oldest *ride.Ride
	for _, r := range st.rides {
		if r.Matched() {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			r := r
			oldest = &r
		}
	}
	if oldest == nil {
		return nil, ports.ErrNotFound
	}
	return oldest, nil
}

func (repo *rideRepo) update(ctx context.Context, id string, fn func(st *state, r *ride.Ride) error) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	r, ok := st.rides[id]
	if !ok {
		return ports.ErrNotFound
	}
	if err := fn(st, &r); err != nil {
		return err
	}
	st.rides[id] = r
	return nil
}

func (repo *rideRepo) AssignChair(ctx context.Context, rideID, chairID string) error {
	return repo.update(ctx, rideID, func(st *state, r *ride.Ride) error {
		if r.Matched() {
			return ride.ErrChairAlreadyAssign
		}
		id := chairID
		r.ChairID = &id
		r.UpdatedAt = st.now()
		return nil
	})
}

func (repo *rideRepo) SetEvaluation(ctx context.Context, rideID string, evaluation int) error {
	return repo.update(ctx, rideID, func(st *state, r *ride.Ride) error {
		v := evaluation
		r.Evaluation = &v
		r.UpdatedAt = st.now()
		return nil
	})
}

func (repo *rideRepo) MarkSettled(ctx context.Context, rideID string, at time.Time) error {
	return repo.update(ctx, rideID, func(st *state, r *ride.Ride) error {
		t := at
		r.SettledAt = &t
		return nil
	})
}

func (repo *rideRepo) filter(ctx context.Context, keep func(r ride.Ride) bool) ([]ride.Ride, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	var out []ride.Ride
	for _, r := range st.rides {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortRidesByCreated(out)
	return out, nil
}

func (repo *rideRepo) LatestForUser(ctx context.Context, userID string) (*ride.Ride, error) {
	rides, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return nil, ports.ErrNotFound
	}
	return &rides[len(rides)-1], nil
}

func (repo *rideRepo) LatestForChair(ctx context.Context, chairID string) (*ride.Ride, error) {
	rides, err := repo.ListByChair(ctx, chairID)
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return nil, ports.ErrNotFound
	}
	return &rides[0], nil
}

func (repo *rideRepo) ListByUser(ctx context.Context, userID string) ([]ride.Ride, error) {
	return repo.filter(ctx, func(r ride.Ride) bool { return r.RiderID == userID })
}

func (repo *rideRepo) ListByChair(ctx context.Context, chairID string) ([]ride.Ride, error) {
	out, err := repo.filter(ctx, func(r ride.Ride) bool { return r.AssignedTo(chairID) })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (repo *rideRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	rides, err := repo.ListByUser(ctx, userID)
	return len(rides), err
}

type statusRepo struct{ store *Store }

func (repo *statusRepo) Append(ctx context.Context, e *ride.StatusEvent) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.rides[e.RideID]; !ok {
		return fmt.Errorf("insert ride status: unknown ride %s", e.RideID)
	}

	at := st.now()
	for _, prev := range st.statuses {
		if prev.RideID == e.RideID && !at.After(prev.CreatedAt) {
			at = prev.CreatedAt.Add(time.Microsecond)
		}
	}
	e.CreatedAt = at
	e.RiderSentAt, e.ChairSentAt = nil, nil
	st.statuses = append(st.statuses, *e)
	return nil
}

func (repo *statusRepo) List(ctx context.Context, rideID string) ([]ride.StatusEvent, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	var out []ride.StatusEvent
	for _, e := range st.statuses {
		if e.RideID == rideID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (repo *statusRepo) Latest(ctx context.Context, rideID string) (*ride.StatusEvent, error) {
	events, err := repo.List(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ports.ErrNotFound
	}
	return &events[len(events)-1], nil
}

func (repo *statusRepo) LockOldestUndelivered(ctx context.Context, rideID string, channel ride.Channel) (*ride.StatusEvent, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown notification channel %q", channel)
	}
	events, err := repo.List(ctx, rideID)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if !e.DeliveredTo(channel) {
			return &e, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (repo *statusRepo) MarkDelivered(ctx context.Context, eventID string, channel ride.Channel, at time.Time) error {
	if !channel.Valid() {
		return fmt.Errorf("unknown notification channel %q", channel)
	}
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	for i := range st.statuses {
		e := &st.statuses[i]
		if e.ID != eventID {
			continue
		}
		if e.DeliveredTo(channel) {
			return ports.ErrNotFound
		}
		e.MarkDelivered(channel, at)
		return nil
	}
	return ports.ErrNotFound
}
