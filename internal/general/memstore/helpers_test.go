package memstore

import (
	"time"

	"isuride/internal/domain/coupon"
)

func couponFor(userID, code string) *coupon.Coupon {
	return coupon.New(userID, code, 100, time.Now())
}
