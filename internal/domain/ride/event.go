package ride

import (
	"errors"
	"strings"
	"time"
)

// Channel identifies one of the two independent notification consumers.
type Channel string

const (
	ChannelRider Channel = "rider"
	ChannelChair Channel = "chair"
)

// Valid reports whether channel is a known consumer.
func (channel Channel) Valid() bool {
	return channel == ChannelRider || channel == ChannelChair
}

// StatusEvent is the domain entity corresponding to the `ride_statuses` table.
// Events are append-only; only the delivery markers are ever updated.
type StatusEvent struct {
	ID        string
	RideID    string
	Status    Status
	CreatedAt time.Time

	RiderSentAt *time.Time
	ChairSentAt *time.Time
}

var ErrRideIDRequired = errors.New("ride id is required")

// NewStatusEvent constructs an undelivered event.
func NewStatusEvent(id, rideID string, status Status) (*StatusEvent, error) {
	if strings.TrimSpace(rideID) == "" {
		return nil, ErrRideIDRequired
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return &StatusEvent{
		ID:        id,
		RideID:    rideID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DeliveredTo reports whether the channel's marker is set.
func (event *StatusEvent) DeliveredTo(channel Channel) bool {
	switch channel {
	case ChannelRider:
		return event.RiderSentAt != nil
	case ChannelChair:
		return event.ChairSentAt != nil
	default:
		return false
	}
}

// MarkDelivered sets the channel's marker.
func (event *StatusEvent) MarkDelivered(channel Channel, at time.Time) {
	switch channel {
	case ChannelRider:
		event.RiderSentAt = &at
	case ChannelChair:
		event.ChairSentAt = &at
	}
}
