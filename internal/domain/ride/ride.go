package ride

import (
	"errors"
	"strings"
	"time"

	"isuride/internal/domain/geo"
)

// Ride is the domain entity corresponding to the `rides` table.
type Ride struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	RiderID string
	ChairID *string // nil until matched

	Pickup      geo.Coordinate
	Destination geo.Coordinate

	Evaluation *int       // 1..5, set once on completion
	SettledAt  *time.Time // stamped when the payment gateway confirmed the charge
}

const (
	MinEvaluation = 1
	MaxEvaluation = 5
)

var (
	ErrRiderRequired      = errors.New("rider id is required")
	ErrEvaluationRange    = errors.New("evaluation must be between 1 and 5")
	ErrChairAlreadyAssign = errors.New("ride already has a chair")
)

// NewRide constructs an unmatched ride.
func NewRide(id, riderID string, pickup, destination geo.Coordinate) (*Ride, error) {
	if strings.TrimSpace(riderID) == "" {
		return nil, ErrRiderRequired
	}
	now := time.Now().UTC()
	return &Ride{
		ID:          id,
		RiderID:     riderID,
		Pickup:      pickup,
		Destination: destination,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Matched reports whether a chair has been assigned.
func (ride *Ride) Matched() bool {
	return ride.ChairID != nil && *ride.ChairID != ""
}

// AssignedTo reports whether the ride is assigned to the given chair.
func (ride *Ride) AssignedTo(chairID string) bool {
	return ride.Matched() && *ride.ChairID == chairID
}

// ValidEvaluation checks the 1..5 range.
func ValidEvaluation(evaluation int) error {
	if evaluation < MinEvaluation || evaluation > MaxEvaluation {
		return ErrEvaluationRange
	}
	return nil
}
