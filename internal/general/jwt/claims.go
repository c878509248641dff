package jwt

import (
	"time"

	"isuride/internal/domain/user"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims is the session token payload. Subject is the rider, chair or owner id.
type Claims struct {
	Role user.Role `json:"role"` // RIDER | CHAIR | OWNER
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// NewSessionClaims builds claims for subject with the given role.
func NewSessionClaims(subject string, role user.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}
