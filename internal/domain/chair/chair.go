package chair

import (
	"errors"
	"strings"
	"time"

	"isuride/internal/domain/geo"
)

// Chair is the domain entity corresponding to the `chairs` table.
type Chair struct {
	ID        string
	OwnerID   string
	Name      string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time

	// IsActive is the driver-controlled availability toggle.
	IsActive bool
	// IsBusy is set when a ride is assigned and cleared once the chair has
	// received that ride's COMPLETED notification.
	IsBusy bool
}

// Location is one position sample reported by a chair (`chair_locations`).
type Location struct {
	ID         string
	ChairID    string
	Coordinate geo.Coordinate
	CreatedAt  time.Time
}

var ErrMissingFields = errors.New("some of required fields(name, model, chair_register_token) are empty")

// NewChair constructs an inactive, idle chair for an owner.
func NewChair(id, ownerID, name, model string) (*Chair, error) {
	name, model = strings.TrimSpace(name), strings.TrimSpace(model)
	if name == "" || model == "" {
		return nil, ErrMissingFields
	}
	now := time.Now().UTC()
	return &Chair{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Available reports whether the chair may receive a new ride.
func (chair *Chair) Available() bool {
	return chair.IsActive && !chair.IsBusy
}

// NewLocation stamps a sample for the chair.
func NewLocation(id, chairID string, coordinate geo.Coordinate) *Location {
	return &Location{
		ID:         id,
		ChairID:    chairID,
		Coordinate: coordinate,
		CreatedAt:  time.Now().UTC(),
	}
}
