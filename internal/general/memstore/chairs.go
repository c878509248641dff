package memstore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"isuride/internal/domain/chair"
	"isuride/internal/ports"
)

type chairRepo struct{ store *Store }

func (repo *chairRepo) Create(ctx context.Context, c *chair.Chair) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.owners[c.OwnerID]; !ok {
		return fmt.Errorf("insert chair: unknown owner %s", c.OwnerID)
	}
	now := st.now()
	c.CreatedAt, c.UpdatedAt = now, now
	st.chairs[c.ID] = *c
	return nil
}

func (repo *chairRepo) GetByID(ctx context.Context, id string) (*chair.Chair, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := st.chairs[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &c, nil
}

func (repo *chairRepo) LockFreeByID(ctx context.Context, id string) (*chair.Chair, error) {
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Available() {
		return nil, ports.ErrNotFound
	}
	return c, nil
}

func (repo *chairRepo) update(ctx context.Context, id string, fn func(c *chair.Chair)) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	c, ok := st.chairs[id]
	if !ok {
		return ports.ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = st.now()
	st.chairs[id] = c
	return nil
}

func (repo *chairRepo) SetActive(ctx context.Context, id string, active bool) error {
	return repo.update(ctx, id, func(c *chair.Chair) { c.IsActive = active })
}

func (repo *chairRepo) SetBusy(ctx context.Context, id string, busy bool) error {
	return repo.update(ctx, id, func(c *chair.Chair) { c.IsBusy = busy })
}

func (repo *chairRepo) RandomActive(ctx context.Context) (*chair.Chair, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	var active []chair.Chair
	for _, c := range st.chairs {
		if c.IsActive {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return nil, ports.ErrNotFound
	}
	c := active[rand.IntN(len(active))]
	return &c, nil
}

func (repo *chairRepo) ListAvailable(ctx context.Context) ([]chair.Chair, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	var out []chair.Chair
	for _, c := range st.chairs {
		if c.Available() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type locationRepo struct{ store *Store }

func (repo *locationRepo) Append(ctx context.Context, l *chair.Location) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.chairs[l.ChairID]; !ok {
		return fmt.Errorf("insert chair location: unknown chair %s", l.ChairID)
	}
	l.CreatedAt = st.now()
	st.locations = append(st.locations, *l)
	return nil
}

func (repo *locationRepo) Latest(ctx context.Context, chairID string) (*chair.Location, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(st.locations) - 1; i >= 0; i-- {
		if st.locations[i].ChairID == chairID {
			l := st.locations[i]
			return &l, nil
		}
	}
	return nil, ports.ErrNotFound
}
