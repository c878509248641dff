package ports

import (
	"context"

	"isuride/internal/domain/geo"
)

// ----- DTOs for rider operations -----

// RegisterUserInput is the validated input for POST /api/app/users.
type RegisterUserInput struct {
	Username       string
	Firstname      string
	Lastname       string
	DateOfBirth    string
	InvitationCode string // optional: referrer's code
}

// RegisterUserResult is returned by RiderService.RegisterUser().
type RegisterUserResult struct {
	ID             string `json:"id"`
	InvitationCode string `json:"invitation_code"`
}

// RegisterPaymentMethodInput sets the rider's active gateway token.
type RegisterPaymentMethodInput struct {
	UserID string
	Token  string
}

// CreateRideInput is the validated input required to create a ride.
type CreateRideInput struct {
	UserID      string
	Pickup      *geo.Coordinate
	Destination *geo.Coordinate
}

// CreateRideResult is returned by RiderService.CreateRide() function.
type CreateRideResult struct {
	RideID string `json:"ride_id"`
	Fare   int    `json:"fare"`
}

// EstimateFareInput previews the fare of a ride that is not created yet.
type EstimateFareInput struct {
	UserID      string
	Pickup      *geo.Coordinate
	Destination *geo.Coordinate
}

// EstimateFareResult carries the total fare and the discount the coupon policy would apply.
type EstimateFareResult struct {
	Fare     int `json:"fare"`
	Discount int `json:"discount"`
}

// EvaluateRideInput is the rider's rating that completes a ride.
type EvaluateRideInput struct {
	UserID     string
	RideID     string
	Evaluation int
}

// EvaluateRideResult is returned once the ride is COMPLETED and settled.
type EvaluateRideResult struct {
	CompletedAt int64 `json:"completed_at"` // unix ms
}

// HistoryChair describes the chair of a completed ride.
type HistoryChair struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// RideHistoryItem is one entry of GET /api/app/rides.
type RideHistoryItem struct {
	ID                    string         `json:"id"`
	PickupCoordinate      geo.Coordinate `json:"pickup_coordinate"`
	DestinationCoordinate geo.Coordinate `json:"destination_coordinate"`
	Chair                 HistoryChair   `json:"chair"`
	Fare                  int            `json:"fare"`
	Evaluation            int            `json:"evaluation"`
	RequestedAt           int64          `json:"requested_at"`
	CompletedAt           int64          `json:"completed_at"`
}

// RideHistoryResult wraps the rider's completed rides, newest first.
type RideHistoryResult struct {
	Rides []RideHistoryItem `json:"rides"`
}

// NearbyChairsInput is the query of GET /api/app/nearby-chairs.
type NearbyChairsInput struct {
	Center   geo.Coordinate
	Distance int
}

// NearbyChair is an idle chair close to the query point.
type NearbyChair struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Model             string         `json:"model"`
	CurrentCoordinate geo.Coordinate `json:"current_coordinate"`
}

// NearbyChairsResult is returned by RiderService.NearbyChairs().
type NearbyChairsResult struct {
	Chairs      []NearbyChair `json:"chairs"`
	RetrievedAt int64         `json:"retrieved_at"`
}

// ----- Rider Service Interface -----

// RiderService exposes the rider-facing operations of the dispatch engine.
type RiderService interface {
	RegisterUser(ctx context.Context, in RegisterUserInput) (RegisterUserResult, error)
	RegisterPaymentMethod(ctx context.Context, in RegisterPaymentMethodInput) error
	CreateRide(ctx context.Context, in CreateRideInput) (CreateRideResult, error)
	EstimateFare(ctx context.Context, in EstimateFareInput) (EstimateFareResult, error)
	EvaluateRide(ctx context.Context, in EvaluateRideInput) (EvaluateRideResult, error)
	ListRides(ctx context.Context, userID string) (RideHistoryResult, error)
	NearbyChairs(ctx context.Context, in NearbyChairsInput) (NearbyChairsResult, error)
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for owner and chair operations -----

// RegisterOwnerResult is returned by OwnerService.RegisterOwner().
type RegisterOwnerResult struct {
	ID                 string `json:"id"`
	ChairRegisterToken string `json:"chair_register_token"`
}

// RegisterChairInput is the validated input for POST /api/chair/chairs.
type RegisterChairInput struct {
	Name               string
	Model              string
	ChairRegisterToken string
}

// RegisterChairResult is returned by ChairService.RegisterChair().
type RegisterChairResult struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
}

// ChairCoordinateInput is one location sample reported by a chair.
type ChairCoordinateInput struct {
	ChairID    string
	Coordinate *geo.Coordinate
}

// ChairCoordinateResult matches the API response for a location sample.
type ChairCoordinateResult struct {
	RecordedAt int64 `json:"recorded_at"`
}

// ChairRideStatusInput is an explicit chair acknowledgement (ENROUTE or CARRYING).
type ChairRideStatusInput struct {
	ChairID string
	RideID  string
	Status  string
}

// OwnerService registers chair owners.
type OwnerService interface {
	RegisterOwner(ctx context.Context, name string) (RegisterOwnerResult, error)
}

// ChairService exposes the chair-facing operations of the dispatch engine.
type ChairService interface {
	RegisterChair(ctx context.Context, in RegisterChairInput) (RegisterChairResult, error)
	SetActivity(ctx context.Context, chairID string, active bool) error
	RecordCoordinate(ctx context.Context, in ChairCoordinateInput) (ChairCoordinateResult, error)
	UpdateRideStatus(ctx context.Context, in ChairRideStatusInput) error
}

// ---------------------------------------------------------------------------------------------------------------

// ----- DTOs for notification polling -----

// ChairStats summarizes a chair's completed rides.
type ChairStats struct {
	TotalRidesCount    int     `json:"total_rides_count"`
	TotalEvaluationAvg float64 `json:"total_evaluation_avg"`
}

// NotificationChair is the chair block of a rider notification.
type NotificationChair struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Model string     `json:"model"`
	Stats ChairStats `json:"stats"`
}

// RiderNotificationData is the ride snapshot reported to the rider channel.
type RiderNotificationData struct {
	RideID                string             `json:"ride_id"`
	PickupCoordinate      geo.Coordinate     `json:"pickup_coordinate"`
	DestinationCoordinate geo.Coordinate     `json:"destination_coordinate"`
	Fare                  int                `json:"fare"`
	Status                string             `json:"status"`
	Chair                 *NotificationChair `json:"chair,omitempty"`
	CreatedAt             int64              `json:"created_at"`
	UpdatedAt             int64              `json:"updated_at"`
}

// RiderNotification is the poll response of the rider channel.
type RiderNotification struct {
	Data         *RiderNotificationData `json:"data,omitempty"`
	RetryAfterMs int                    `json:"retry_after_ms"`
	// Delivered reports whether this poll marked an event as delivered.
	Delivered bool `json:"-"`
}

// NotificationUser is the rider block of a chair notification.
type NotificationUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChairNotificationData is the ride snapshot reported to the chair channel.
type ChairNotificationData struct {
	RideID                string           `json:"ride_id"`
	User                  NotificationUser `json:"user"`
	PickupCoordinate      geo.Coordinate   `json:"pickup_coordinate"`
	DestinationCoordinate geo.Coordinate   `json:"destination_coordinate"`
	Status                string           `json:"status"`
}

// ChairNotification is the poll response of the chair channel.
type ChairNotification struct {
	Data         *ChairNotificationData `json:"data,omitempty"`
	RetryAfterMs int                    `json:"retry_after_ms"`
	Delivered    bool                   `json:"-"`
}

// NotificationService implements the per-channel read-and-mark poll.
type NotificationService interface {
	PollRider(ctx context.Context, userID string) (RiderNotification, error)
	PollChair(ctx context.Context, chairID string) (ChairNotification, error)

	// DeliverRider and DeliverChair run the same poll for push transports: a
	// newly delivered notification is handed to send before its delivery marker
	// commits, and a send error rolls the marker back.
	DeliverRider(ctx context.Context, userID string, send func(RiderNotification) error) error
	DeliverChair(ctx context.Context, chairID string, send func(ChairNotification) error) error
}

// ---------------------------------------------------------------------------------------------------------------

// MatchResult describes the outcome of one matching round.
type MatchResult struct {
	RideID  string `json:"ride_id,omitempty"`
	ChairID string `json:"chair_id,omitempty"`
	Matched bool   `json:"matched"`
	Draws   int    `json:"draws"`
}

// Matcher pairs the oldest unmatched ride with a free chair.
type Matcher interface {
	MatchOnce(ctx context.Context) (MatchResult, error)
}
