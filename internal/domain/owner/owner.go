package owner

import (
	"errors"
	"strings"
	"time"
)

// Owner operates chairs and hands out the token chairs register with.
type Owner struct {
	ID                 string
	Name               string
	ChairRegisterToken string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

var ErrNameRequired = errors.New("some of required fields(name) are empty")

// NewOwner constructs an owner.
func NewOwner(id, name, chairRegisterToken string) (*Owner, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := time.Now().UTC()
	return &Owner{
		ID:                 id,
		Name:               name,
		ChairRegisterToken: chairRegisterToken,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}
