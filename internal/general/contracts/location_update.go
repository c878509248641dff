package contracts

import "time"

// ChairLocationMessage is streamed to TopicChairLocations, keyed by chair id.
type ChairLocationMessage struct {
	LocationID string    `json:"location_id"`
	ChairID    string    `json:"chair_id"`
	Location   GeoPoint  `json:"location"`
	RecordedAt time.Time `json:"recorded_at"`
	Envelope
}
