package memstore

import (
	"context"
	"fmt"

	"isuride/internal/domain/owner"
	"isuride/internal/domain/user"
	"isuride/internal/ports"
)

type userRepo struct{ store *Store }

func (repo *userRepo) Create(ctx context.Context, u *user.User) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.users[u.ID]; ok {
		return fmt.Errorf("insert user: duplicate id %s", u.ID)
	}
	for _, existing := range st.users {
		if existing.Username == u.Username {
			return fmt.Errorf("insert user: duplicate username %s", u.Username)
		}
		if existing.InvitationCode == u.InvitationCode {
			return fmt.Errorf("insert user: duplicate invitation code %s", u.InvitationCode)
		}
	}
	now := st.now()
	u.CreatedAt, u.UpdatedAt = now, now
	st.users[u.ID] = *u
	return nil
}

func (repo *userRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := st.users[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &u, nil
}

func (repo *userRepo) LockByID(ctx context.Context, id string) (*user.User, error) {
	return repo.GetByID(ctx, id)
}

func (repo *userRepo) LockByInvitationCode(ctx context.Context, code string) (*user.User, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range st.users {
		if u.InvitationCode == code {
			return &u, nil
		}
	}
	return nil, ports.ErrNotFound
}

type tokenRepo struct{ store *Store }

func (repo *tokenRepo) Upsert(ctx context.Context, t *user.PaymentToken) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	if _, ok := st.users[t.UserID]; !ok {
		return fmt.Errorf("upsert payment token: unknown user %s", t.UserID)
	}
	t.CreatedAt = st.now()
	st.tokens[t.UserID] = *t
	return nil
}

func (repo *tokenRepo) GetByUser(ctx context.Context, userID string) (*user.PaymentToken, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := st.tokens[userID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &t, nil
}

type ownerRepo struct{ store *Store }

func (repo *ownerRepo) Create(ctx context.Context, o *owner.Owner) error {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return err
	}
	for _, existing := range st.owners {
		if existing.Name == o.Name || existing.ChairRegisterToken == o.ChairRegisterToken {
			return fmt.Errorf("insert owner: duplicate name or token")
		}
	}
	now := st.now()
	o.CreatedAt, o.UpdatedAt = now, now
	st.owners[o.ID] = *o
	return nil
}

func (repo *ownerRepo) GetByID(ctx context.Context, id string) (*owner.Owner, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	o, ok := st.owners[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &o, nil
}

func (repo *ownerRepo) GetByChairRegisterToken(ctx context.Context, token string) (*owner.Owner, error) {
	st, err := repo.store.tx(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range st.owners {
		if o.ChairRegisterToken == token {
			return &o, nil
		}
	}
	return nil, ports.ErrNotFound
}
