package coupon

import (
	"fmt"
	"time"
)

// Coupon is a one-time discount grant, the domain entity of the `coupons` table.
// The pair (UserID, Code) identifies a coupon.
type Coupon struct {
	UserID    string
	Code      string
	Discount  int
	CreatedAt time.Time
	UsedBy    *string // ride id, set at most once
}

const (
	invitePrefix = "INV_"
	rewardPrefix = "RWD_"
)

// Used reports whether the coupon is attached to a ride.
func (coupon *Coupon) Used() bool {
	return coupon.UsedBy != nil
}

// InviteCode is the code of the coupon a new rider receives for registering with invitationCode.
// Counting these coupons gives the number of times the invitation was redeemed.
func InviteCode(invitationCode string) string {
	return invitePrefix + invitationCode
}

// RewardCode is the code of the coupon the referring rider receives.
// The millisecond suffix keeps repeated rewards for the same invitation distinct.
func RewardCode(invitationCode string, at time.Time) string {
	return fmt.Sprintf("%s%d", RewardPrefix(invitationCode), at.UnixMilli())
}

// RewardPrefix is shared by every reward code issued for one invitation code.
func RewardPrefix(invitationCode string) string {
	return rewardPrefix + invitationCode + "_"
}

// New builds an unused coupon.
func New(userID, code string, discount int, at time.Time) *Coupon {
	return &Coupon{UserID: userID, Code: code, Discount: discount, CreatedAt: at}
}
