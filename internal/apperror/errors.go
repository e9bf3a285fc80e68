// Package apperror defines the error taxonomy shared by the billing and
// table session services. Every failure carries a stable code that the HTTP
// layer maps to a status, plus a human-readable reason.
package apperror

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation             Code = "validation_error"
	CodeNotFound               Code = "not_found"
	CodeAlreadyCancelled       Code = "already_cancelled"
	CodeAlreadyPaid            Code = "already_paid"
	CodeInvalidStateTransition Code = "invalid_state_transition"
	CodeCounterAllocation      Code = "counter_allocation_failure"
	CodeConflict               Code = "conflict"
)

// Error is a coded failure. Two errors match under errors.Is when their
// codes are equal, so callers compare against the sentinels below.
type Error struct {
	Code    Code   `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func (e *Error) Unwrap() error { return e.cause }

var (
	ErrValidation             = &Error{Code: CodeValidation, Message: "validation error"}
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyCancelled       = &Error{Code: CodeAlreadyCancelled, Message: "already cancelled"}
	ErrAlreadyPaid            = &Error{Code: CodeAlreadyPaid, Message: "already paid"}
	ErrInvalidStateTransition = &Error{Code: CodeInvalidStateTransition, Message: "invalid state transition"}
	ErrCounterAllocation      = &Error{Code: CodeCounterAllocation, Message: "counter allocation failed"}
	ErrConflict               = &Error{Code: CodeConflict, Message: "conflict"}
)

func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

func NotFound(resource string) *Error {
	return &Error{Code: CodeNotFound, Field: resource, Message: resource + " not found"}
}

func AlreadyCancelled(message string) *Error {
	return &Error{Code: CodeAlreadyCancelled, Message: message}
}

func AlreadyPaid(message string) *Error {
	return &Error{Code: CodeAlreadyPaid, Message: message}
}

func InvalidTransition(from, to string) *Error {
	return &Error{
		Code:    CodeInvalidStateTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func CounterAllocation(cause error) *Error {
	return &Error{Code: CodeCounterAllocation, Message: "invoice number could not be allocated", cause: cause}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// CodeOf returns the taxonomy code of err, or "" when err is not coded.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
