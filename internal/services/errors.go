package services

import (
	"errors"

	"github.com/diewo77/invoicer/validation"
)

// Error is a domain-level error carrying a stable code.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Details validation.Violations `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is implements errors.Is matching on Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new domain error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrNotFound      = NewError("NOT_FOUND", "invoice not found")
	ErrInvalidInput  = NewError("INVALID_INPUT", "invalid input provided")
	ErrInvalidStatus = NewError("INVALID_STATUS", "status must be one of Sent, Paid, Overdue")
	ErrInvalidRange  = NewError("INVALID_RANGE", "range must be one of 7, 30, 90, all")
)

// invalidInput returns an INVALID_INPUT error listing the field violations.
func invalidInput(v validation.Violations) *Error {
	return &Error{Code: ErrInvalidInput.Code, Message: ErrInvalidInput.Message, Details: v}
}

// ViolationsOf extracts field violations from an INVALID_INPUT error.
func ViolationsOf(err error) validation.Violations {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
