package contracts

import "time"

// RideStatusMessage is published after a status event commits.
// Routing key: "ride.status.{status}" on ExchangeRideTopic.
type RideStatusMessage struct {
	RideID    string    `json:"ride_id"`
	Status    string    `json:"status"` // MATCHING|ENROUTE|PICKUP|CARRYING|ARRIVED|COMPLETED
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
