package ride

import (
	"errors"
	"strings"
)

// Status is a ride lifecycle label as stored in the `ride_statuses` table.
type Status string

const (
	StatusMatching  Status = "MATCHING"
	StatusEnroute   Status = "ENROUTE"
	StatusPickup    Status = "PICKUP"
	StatusCarrying  Status = "CARRYING"
	StatusArrived   Status = "ARRIVED"
	StatusCompleted Status = "COMPLETED"

	// StatusCancelled is part of the vocabulary but no operation records it.
	StatusCancelled Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid ride status")

// Lifecycle is the only legal order of recorded statuses for a ride.
var Lifecycle = []Status{
	StatusMatching,
	StatusEnroute,
	StatusPickup,
	StatusCarrying,
	StatusArrived,
	StatusCompleted,
}

// transitions maps a current status to the single status allowed next.
var transitions = map[Status]Status{
	StatusMatching: StatusEnroute,
	StatusEnroute:  StatusPickup,
	StatusPickup:   StatusCarrying,
	StatusCarrying: StatusArrived,
	StatusArrived:  StatusCompleted,
}

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed ride status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusMatching, StatusEnroute, StatusPickup, StatusCarrying, StatusArrived, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Next returns the status that follows this one in the lifecycle.
func (status Status) Next() (Status, bool) {
	next, ok := transitions[status]
	return next, ok
}

// CanTransitionTo specifies if the status can transition to the next status.
func (status Status) CanTransitionTo(next Status) bool {
	allowed, ok := transitions[status]
	return ok && allowed == next
}

// Terminal indicates if no further status can be recorded.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// InProgress reports whether a ride in this status still blocks its rider from requesting another.
func (status Status) InProgress() bool {
	return !status.Terminal()
}
