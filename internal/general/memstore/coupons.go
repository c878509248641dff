package memstore

import (
	"context"
	"fmt"
	"sort"

	"isuride/internal/domain/coupon"
	"isuride/internal/ports"
)

type couponRepo struct{ store *Store }

func (repo *couponRepo) Create(ctx context.Context, c *coupon.Coupon) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.users[c.UserID]; !ok {
		return fmt.Errorf("insert coupon: unknown user %s", c.UserID)
	}
	for _, existing := range st.coupons {
		if existing.UserID == c.UserID && existing.Code == c.Code {
			return fmt.Errorf("insert coupon: duplicate code %s for user %s", c.Code, c.UserID)
		}
	}
	st.coupons = append(st.coupons, *c)
	return nil
}

// unused returns the rider's unused coupons, oldest first.
func (repo *couponRepo) unused(ctx context.Context, userID string) ([]coupon.Coupon, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	var out []coupon.Coupon
	for _, c := range st.coupons {
		if c.UserID == userID && !c.Used() {
			out = append(out, c)
		}
	}
	sortCoupons(out)
	return out, nil
}

func sortCoupons(cs []coupon.Coupon) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].Code < cs[j].Code
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}

func (repo *couponRepo) FindUnusedByCode(ctx context.Context, userID, code string) (*coupon.Coupon, error) {
	cs, err := repo.unused(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range cs {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (repo *couponRepo) FindOldestUnused(ctx context.Context, userID string) (*coupon.Coupon, error) {
	cs, err := repo.unused(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, ports.ErrNotFound
	}
	return &cs[0], nil
}

func (repo *couponRepo) LockUnusedByCode(ctx context.Context, userID, code string) (*coupon.Coupon, error) {
	return repo.FindUnusedByCode(ctx, userID, code)
}

func (repo *couponRepo) LockOldestUnused(ctx context.Context, userID string) (*coupon.Coupon, error) {
	return repo.FindOldestUnused(ctx, userID)
}

func (repo *couponRepo) MarkUsed(ctx context.Context, userID, code, rideID string) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	for _, c := range st.coupons {
		if c.UsedBy != nil && *c.UsedBy == rideID {
			return fmt.Errorf("mark coupon used: ride %s already has a coupon", rideID)
		}
	}
	for i := range st.coupons {
		c := &st.coupons[i]
		if c.UserID != userID || c.Code != code || c.Used() {
			continue
		}
		id := rideID
		c.UsedBy = &id
		return nil
	}
	return ports.ErrNotFound
}

func (repo *couponRepo) GetByRide(ctx context.Context, rideID string) (*coupon.Coupon, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range st.coupons {
		if c.UsedBy != nil && *c.UsedBy == rideID {
			return &c, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (repo *couponRepo) CountByCode(ctx context.Context, code string) (int, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range st.coupons {
		if c.Code == code {
			n++
		}
	}
	return n, nil
}

func (repo *couponRepo) ListByUser(ctx context.Context, userID string) ([]coupon.Coupon, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	var out []coupon.Coupon
	for _, c := range st.coupons {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sortCoupons(out)
	return out, nil
}
