// Package apperr defines the stable error taxonomy every operation boundary
// reports through. Callers match on Kind; the message is safe to show to
// end users and never carries store internals.
package apperr

import "errors"

type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindNotFound       Kind = "not_found"
	KindInvalidState   Kind = "invalid_state"
	KindConflict       Kind = "conflict"
	KindInternal       Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap keeps the cause for logging while exposing only kind and message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// KindOf returns the taxonomy kind of err, or KindInternal for errors that
// did not originate at an operation boundary.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// MessageOf returns the user-safe message of err, or a generic one.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
