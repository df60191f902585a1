// Package bankerr defines the error kinds shared by every service. Business
// outcomes (insufficient funds, bad OTP, failed signature) and faults are both
// reported as *Error so callers can branch on Kind instead of message text.
package bankerr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindInsufficientFunds
	KindInvalidOTP
	KindOTPRequired
	KindIntegrity
	KindAuthenticity
	KindExpiredRequest
	KindUnknownBank
	KindRemoteTransfer
	KindNotification
)

var kindNames = map[Kind]string{
	KindUnexpected:        "unexpected",
	KindValidation:        "validation",
	KindNotFound:          "not_found",
	KindForbidden:         "forbidden",
	KindInsufficientFunds: "insufficient_funds",
	KindInvalidOTP:        "invalid_otp",
	KindOTPRequired:       "otp_required",
	KindIntegrity:         "integrity",
	KindAuthenticity:      "authenticity",
	KindExpiredRequest:    "expired_request",
	KindUnknownBank:       "unknown_bank",
	KindRemoteTransfer:    "remote_transfer",
	KindNotification:      "notification",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrUnexpected        = &Error{Kind: KindUnexpected, Message: "unexpected error"}
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInvalidOTP        = &Error{Kind: KindInvalidOTP, Message: "invalid otp"}
	ErrOTPRequired       = &Error{Kind: KindOTPRequired, Message: "otp required"}
	ErrIntegrity         = &Error{Kind: KindIntegrity, Message: "request hash mismatch"}
	ErrAuthenticity      = &Error{Kind: KindAuthenticity, Message: "signature verification failed"}
	ErrExpiredRequest    = &Error{Kind: KindExpiredRequest, Message: "request timestamp outside accepted window"}
	ErrUnknownBank       = &Error{Kind: KindUnknownBank, Message: "unknown bank"}
	ErrRemoteTransfer    = &Error{Kind: KindRemoteTransfer, Message: "remote bank call failed"}
	ErrNotification      = &Error{Kind: KindNotification, Message: "notification delivery failed"}
)

// Error carries a kind, a caller-safe message and an optional internal cause.
// Err is never rendered to API clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that errors.Is(err, bankerr.ErrNotFound) holds
// for any not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Unexpected(message string, err error) *Error {
	return Wrap(KindUnexpected, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnexpected when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// PublicMessage is what may be shown to a client. Unexpected errors are
// collapsed to a generic message.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindUnexpected {
		return "internal error"
	}
	return e.Message
}

// IsExpected reports whether err is a business outcome rather than a fault.
func IsExpected(err error) bool {
	switch KindOf(err) {
	case KindUnexpected, KindRemoteTransfer:
		return false
	}
	return true
}
