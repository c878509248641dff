package postgres

import (
	"errors"

	"isuride/internal/ports"

	"github.com/jackc/pgx/v5"
)

// notFound maps pgx.ErrNoRows to ports.ErrNotFound and leaves other errors untouched.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrNotFound
	}
	return err
}
