package contracts

// WS frame types
const (
	WSTypeRiderNotification = "rider_notification"
	WSTypeChairNotification = "chair_notification"
)

// WSNotification is one frame of a notification stream. Data carries the same
// body the polling endpoint returns.
type WSNotification struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
