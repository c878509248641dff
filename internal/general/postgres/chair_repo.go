package postgres

import (
	"context"
	"fmt"

	"isuride/internal/domain/chair"
	"isuride/internal/ports"

	"github.com/jackc/pgx/v5"
)

// ChairRepo persists chairs using pgx and plain SQL.
type ChairRepo struct{}

// NewChairRepo constructs a new ChairRepo.
func NewChairRepo() ports.ChairRepository {
	return &ChairRepo{}
}

const chairColumns = `id, owner_id, name, model, is_active, is_busy, created_at, updated_at`

func scanChair(row pgx.Row) (*chair.Chair, error) {
	var out chair.Chair
	err := row.Scan(&out.ID, &out.OwnerID, &out.Name, &out.Model, &out.IsActive, &out.IsBusy, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// Create inserts a new chair row.
func (repo *ChairRepo) Create(ctx context.Context, c *chair.Chair) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO chairs (id, owner_id, name, model, is_active, is_busy)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, c.ID, c.OwnerID, c.Name, c.Model, c.IsActive, c.IsBusy).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert chair: %w", err)
	}
	return nil
}

// GetByID fetches a chair by primary key.
func (repo *ChairRepo) GetByID(ctx context.Context, id string) (*chair.Chair, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanChair(tx.QueryRow(ctx, `SELECT `+chairColumns+` FROM chairs WHERE id = $1`, id))
}

// LockFreeByID locks a free chair. A chair that is busy, inactive or already
// locked elsewhere is skipped, so concurrent rounds never wait on each other.
func (repo *ChairRepo) LockFreeByID(ctx context.Context, id string) (*chair.Chair, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanChair(tx.QueryRow(ctx, `
		SELECT `+chairColumns+` FROM chairs
		WHERE id = $1 AND is_active AND NOT is_busy
		FOR UPDATE SKIP LOCKED
	`, id))
}

func (repo *ChairRepo) setFlag(ctx context.Context, id, column string, value bool) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE chairs SET `+column+` = $2, updated_at = clock_timestamp() WHERE id = $1
	`, id, value)
	if err != nil {
		return fmt.Errorf("update chair %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// SetActive toggles the driver-controlled availability flag.
func (repo *ChairRepo) SetActive(ctx context.Context, id string, active bool) error {
	return repo.setFlag(ctx, id, "is_active", active)
}

// SetBusy marks whether the chair has outstanding work.
func (repo *ChairRepo) SetBusy(ctx context.Context, id string, busy bool) error {
	return repo.setFlag(ctx, id, "is_busy", busy)
}

// RandomActive draws one active chair uniformly at random.
func (repo *ChairRepo) RandomActive(ctx context.Context) (*chair.Chair, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanChair(tx.QueryRow(ctx, `
		SELECT `+chairColumns+` FROM chairs WHERE is_active ORDER BY random() LIMIT 1
	`))
}

// ListAvailable returns active chairs that are not busy.
func (repo *ChairRepo) ListAvailable(ctx context.Context) ([]chair.Chair, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+chairColumns+` FROM chairs WHERE is_active AND NOT is_busy ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query available chairs: %w", err)
	}
	defer rows.Close()

	var out []chair.Chair
	for rows.Next() {
		c, err := scanChair(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chair: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
