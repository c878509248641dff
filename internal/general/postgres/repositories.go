package postgres

import "isuride/internal/ports"

// NewRepositories returns the Postgres implementation of every repository.
// All of them run inside the transaction carried by ctx.
func NewRepositories() ports.Repositories {
	return ports.Repositories{
		Users:         NewUserRepo(),
		PaymentTokens: NewPaymentTokenRepo(),
		Owners:        NewOwnerRepo(),
		Chairs:        NewChairRepo(),
		Locations:     NewChairLocationRepo(),
		Rides:         NewRideRepo(),
		Statuses:      NewRideStatusRepo(),
		Coupons:       NewCouponRepo(),
	}
}
