package analysis

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies workflow failures for callers and the HTTP layer.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuthentication  Kind = "authentication"
	KindAuthorization   Kind = "authorization"
	KindNotFound        Kind = "not_found"
	KindBadRequest      Kind = "bad_request"
	KindFailed          Kind = "failed"
	KindInvalidResponse Kind = "invalid_response"
	KindNetwork         Kind = "network"
	KindTimeout         Kind = "timeout"
	KindCancelled       Kind = "cancelled"
	KindUnexpected      Kind = "unexpected"
)

// Error is a classified workflow error. Message is safe to show to end users.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the human readable message without the cause chain.
func (e *Error) UserMessage() string {
	return e.Message
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf classifies err. Context cancellation maps to KindCancelled and any
// unclassified error to KindUnexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindUnexpected
}

// UserMessage returns a message suitable for end users for any error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.UserMessage()
	}
	if errors.Is(err, context.Canceled) {
		return msgCancelled
	}
	return "An unexpected error occurred. Please try again."
}
