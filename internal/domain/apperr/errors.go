// Package apperr is the error taxonomy shared by every dispatch component.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for propagation and for the HTTP boundary.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindMissingDependency Kind = "missing_dependency"
	KindGateway           Kind = "gateway"
	KindInternal          Kind = "internal"

	// boundary kinds, produced by lookups and the auth collaborator
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
)

// Error carries a Kind, a client-facing message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so errors.Is(err, apperr.Conflict("")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string) error        { return newError(KindValidation, msg, nil) }
func Conflict(msg string) error          { return newError(KindConflict, msg, nil) }
func InvalidTransition(msg string) error { return newError(KindInvalidTransition, msg, nil) }
func MissingDependency(msg string) error { return newError(KindMissingDependency, msg, nil) }
func NotFound(msg string) error          { return newError(KindNotFound, msg, nil) }
func Unauthorized(msg string) error      { return newError(KindUnauthorized, msg, nil) }

// Gateway wraps an upstream failure that survived local retries.
func Gateway(msg string, err error) error { return newError(KindGateway, msg, err) }

// Internal wraps an invariant violation. These are never retried.
func Internal(msg string, err error) error { return newError(KindInternal, msg, err) }

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
