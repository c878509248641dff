package postgres

import (
	"context"
	"fmt"

	"isuride/internal/domain/user"
	"isuride/internal/ports"

	"github.com/jackc/pgx/v5"
)

// UserRepo persists riders using pgx and plain SQL.
type UserRepo struct{}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo() ports.UserRepository {
	return &UserRepo{}
}

const userColumns = `id, username, firstname, lastname, date_of_birth, invitation_code, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	var out user.User
	err := row.Scan(
		&out.ID, &out.Username, &out.Firstname, &out.Lastname,
		&out.DateOfBirth, &out.InvitationCode, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// Create inserts a new user row.
func (repo *UserRepo) Create(ctx context.Context, u *user.User) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, username, firstname, lastname, date_of_birth, invitation_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`,
		u.ID,
		u.Username,
		u.Firstname,
		u.Lastname,
		u.DateOfBirth,
		u.InvitationCode,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns one user by id.
func (repo *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// LockByID returns one user by id and holds its row lock.
func (repo *UserRepo) LockByID(ctx context.Context, id string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// LockByInvitationCode locks the rider who hands out the code.
func (repo *UserRepo) LockByInvitationCode(ctx context.Context, code string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(tx.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE invitation_code = $1 FOR UPDATE
	`, code))
}
