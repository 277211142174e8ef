// Package errors provides the error taxonomy used throughout the mediation
// server's core: session core, upstream client, and search engine all wrap
// failures into a MediationError carrying a stable code and message.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error code constants, one per kind in the error handling design.
const (
	EValidation   = "validation error"
	EUnauthorized = "unauthorized"
	ENotFound     = "not found"
	EUpstream     = "upstream error"
	ERateLimited  = "rate limited"
	ETimeout      = "timeout"
	ECancelled    = "cancelled"
	EInternal     = "internal error"
)

// MediationError is the internal error implementation for the mediation server.
type MediationError struct {
	err     error
	code    string
	message string
}

// New returns a new MediationError with the code and message fields set.
func New(code string, format string, a ...any) *MediationError {
	return &MediationError{
		code:    code,
		message: fmt.Sprintf(format, a...),
	}
}

// Wrap returns a new MediationError which wraps an existing error.
func Wrap(err error, code string, format string, a ...any) *MediationError {
	return &MediationError{
		code:    code,
		message: fmt.Sprintf(format, a...),
		err:     err,
	}
}

// Error implements the error interface by writing out the recursive messages.
func (e *MediationError) Error() string {
	if e.message != "" && e.err != nil {
		var b strings.Builder
		b.WriteString(e.message)
		b.WriteString(": ")
		b.WriteString(e.err.Error())
		return b.String()
	} else if e.message != "" {
		return e.message
	} else if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("<%s>", e.code)
}

// Unwrap exposes the wrapped error to errors.Is/errors.As.
func (e *MediationError) Unwrap() error {
	return e.err
}

// Code returns the code of the root error, if available; otherwise returns EInternal.
func Code(err error) string {
	if err == nil {
		return ""
	}

	e, ok := unwrapMediationError(err)
	if !ok {
		return EInternal
	}

	if e == nil {
		return ""
	}

	if e.code != "" {
		return e.code
	}

	if e.err != nil {
		return Code(e.err)
	}

	return EInternal
}

// Message returns the user-facing message associated with err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	e, ok := unwrapMediationError(err)
	if !ok {
		return "an internal error has occurred"
	}

	if e == nil {
		return ""
	}

	if e.message != "" {
		// e.Error() returns the message and the wrapped error.
		return e.Error()
	}

	if e.err != nil {
		return Message(e.err)
	}

	return "an internal error has occurred"
}

// IsContextCanceledError returns true if the error is a context.Canceled error.
func IsContextCanceledError(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsContextDeadlineExceededError returns true if the error is a context.DeadlineExceeded error.
func IsContextDeadlineExceededError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func unwrapMediationError(err error) (*MediationError, bool) {
	for {
		if err == nil {
			return nil, false
		}

		mErr, ok := err.(*MediationError)
		if ok {
			return mErr, true
		}

		err = errors.Unwrap(err)
	}
}
