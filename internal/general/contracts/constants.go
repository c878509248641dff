package contracts

import "strings"

// Exchanges
const (
	ExchangeRideTopic = "ride_topic"
)

// Queues
const (
	QueueRideMatching = "ride_matching"
)

// Routing patterns
const (
	RouteRideStatusPrefix = "ride.status." // {status}
)

// Kafka topics
const (
	TopicChairLocations = "chair-locations"
)

// RideStatusRoutingKey returns e.g. "ride.status.matching".
func RideStatusRoutingKey(status string) string {
	return RouteRideStatusPrefix + strings.ToLower(status)
}
