package postgres

import (
	"context"
	"fmt"

	"isuride/internal/domain/chair"
	"isuride/internal/ports"
)

// ChairLocationRepo persists the chair position history.
type ChairLocationRepo struct{}

// NewChairLocationRepo constructs a new ChairLocationRepo.
func NewChairLocationRepo() ports.ChairLocationRepository {
	return &ChairLocationRepo{}
}

// Append inserts one location sample.
func (repo *ChairLocationRepo) Append(ctx context.Context, l *chair.Location) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO chair_locations (id, chair_id, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, l.ID, l.ChairID, l.Coordinate.Latitude, l.Coordinate.Longitude).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chair location: %w", err)
	}
	return nil
}

// Latest returns the chair's most recent sample.
func (repo *ChairLocationRepo) Latest(ctx context.Context, chairID string) (*chair.Location, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out chair.Location
	err = tx.QueryRow(ctx, `
		SELECT id, chair_id, latitude, longitude, created_at
		FROM chair_locations
		WHERE chair_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, chairID).Scan(&out.ID, &out.ChairID, &out.Coordinate.Latitude, &out.Coordinate.Longitude, &out.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}
