package contracts

import "time"

// Envelope adds cross-cutting headers all messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // request id of the HTTP call that caused the message
	Producer      string    `json:"producer,omitempty"`       // e.g. "dispatch-service"
	SentAt        time.Time `json:"sent_at,omitempty"`
}

// GeoPoint is a coordinate on the integer grid.
type GeoPoint struct {
	Latitude  int `json:"latitude"`
	Longitude int `json:"longitude"`
}
