package service

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the booking and availability services.  Handlers
// map them to HTTP status codes with errors.Is.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("slot already taken")
	ErrPolicyViolation = errors.New("policy violation")
	ErrPaymentRejected = errors.New("payment rejected")
	ErrUnavailable     = errors.New("service unavailable")
)

// Error carries a kind, a message safe to show to clients and, for
// unavailability, the underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func invalidInput(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) error {
	return &Error{Kind: ErrConflict, Msg: fmt.Sprintf(format, args...)}
}

func policyViolation(format string, args ...any) error {
	return &Error{Kind: ErrPolicyViolation, Msg: fmt.Sprintf(format, args...)}
}

func paymentRejected(format string, args ...any) error {
	return &Error{Kind: ErrPaymentRejected, Msg: fmt.Sprintf(format, args...)}
}

func unavailable(op string, err error) error {
	return &Error{Kind: ErrUnavailable, Msg: op, Err: err}
}

// Message returns the client-facing message of err.  Unavailability errors
// never leak their cause.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		if errors.Is(se.Kind, ErrUnavailable) {
			return "internal error while processing the request"
		}
		return se.Msg
	}
	return "internal error while processing the request"
}
