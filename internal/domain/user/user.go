package user

import (
	"errors"
	"strings"
	"time"
)

// User is a rider, the domain entity corresponding to the `users` table.
type User struct {
	ID             string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string
	Firstname      string
	Lastname       string
	DateOfBirth    string
	InvitationCode string // code this rider hands out to invite others
}

// PaymentToken is the rider's active token presented to the payment gateway.
type PaymentToken struct {
	UserID    string
	Token     string
	CreatedAt time.Time
}

var (
	ErrMissingProfile = errors.New("required fields(username, firstname, lastname, date_of_birth) are empty")
	ErrEmptyToken     = errors.New("token is required but was empty")
)

// NewUser constructs a rider entity after trimming and validating the profile fields.
func NewUser(id, username, firstname, lastname, dateOfBirth, invitationCode string) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:             id,
		CreatedAt:      now,
		UpdatedAt:      now,
		Username:       strings.TrimSpace(username),
		Firstname:      strings.TrimSpace(firstname),
		Lastname:       strings.TrimSpace(lastname),
		DateOfBirth:    strings.TrimSpace(dateOfBirth),
		InvitationCode: invitationCode,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks the required profile fields.
func (u *User) Validate() error {
	if u.Username == "" || u.Firstname == "" || u.Lastname == "" || u.DateOfBirth == "" {
		return ErrMissingProfile
	}
	return nil
}

// DisplayName is what chairs see for their passenger.
func (u *User) DisplayName() string {
	return u.Firstname + " " + u.Lastname
}

// NewPaymentToken validates and wraps a gateway token.
func NewPaymentToken(userID, token string) (*PaymentToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	return &PaymentToken{UserID: userID, Token: token, CreatedAt: time.Now().UTC()}, nil
}
