package user

import (
	"errors"
	"strings"
)

// Role identifies which client surface a session token belongs to.
type Role string

const (
	RoleRider Role = "RIDER"
	RoleChair Role = "CHAIR"
	RoleOwner Role = "OWNER"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes (uppercases+trims) and validates a role string.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role.Valid() {
		return role, nil
	}
	return "", ErrInvalidRole
}

// Valid reports whether role is one of the allowed role constants.
func (role Role) Valid() bool {
	switch role {
	case RoleRider, RoleChair, RoleOwner:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Role.
func (role Role) String() string {
	return string(role)
}

// Convenience helpers.
func (role Role) IsRider() bool { return role == RoleRider }
func (role Role) IsChair() bool { return role == RoleChair }
func (role Role) IsOwner() bool { return role == RoleOwner }
