package postgres

import (
	"context"
	"fmt"

	"isuride/internal/domain/owner"
	"isuride/internal/ports"

	"github.com/jackc/pgx/v5"
)

// OwnerRepo persists chair owners.
type OwnerRepo struct{}

func NewOwnerRepo() ports.OwnerRepository {
	return &OwnerRepo{}
}

func scanOwner(row pgx.Row) (*owner.Owner, error) {
	var out owner.Owner
	if err := row.Scan(&out.ID, &out.Name, &out.ChairRegisterToken, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (repo *OwnerRepo) Create(ctx context.Context, o *owner.Owner) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO owners (id, name, chair_register_token) VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, o.ID, o.Name, o.ChairRegisterToken).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	return nil
}

func (repo *OwnerRepo) GetByID(ctx context.Context, id string) (*owner.Owner, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanOwner(tx.QueryRow(ctx, `
		SELECT id, name, chair_register_token, created_at, updated_at FROM owners WHERE id = $1
	`, id))
}

func (repo *OwnerRepo) GetByChairRegisterToken(ctx context.Context, token string) (*owner.Owner, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanOwner(tx.QueryRow(ctx, `
		SELECT id, name, chair_register_token, created_at, updated_at FROM owners WHERE chair_register_token = $1
	`, token))
}
