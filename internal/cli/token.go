package cli

import (
	"fmt"
	"time"

	"isuride/internal/domain/user"
	"isuride/internal/general/jwt"
)

// GenerateSessionToken mints a session token for an existing rider, chair or owner.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateSessionToken(secret, 2*time.Hour,
//	    "01927a3c-5b1e-7c4d-9f00-2a6b8c0d1e2f", "RIDER")
func GenerateSessionToken(secret string, ttl time.Duration, subject string, roleStr string) (string, jwt.Claims, error) {
	role, err := user.ParseRole(roleStr)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: %w", roleStr, err)
	}

	mgr, err := jwt.NewManager(secret, ttl)
	if err != nil {
		return "", jwt.Claims{}, err
	}

	token, claims, err := mgr.Issue(subject, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}
	return token, *claims, nil
}
