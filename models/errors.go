package models

import (
	"errors"
	"fmt"
)

// Error codes for every rejection the scheduling core can surface.
const (
	CodeValidation        = "validation_error"
	CodeSlotConflict      = "slot_conflict"
	CodeForbidden         = "forbidden"
	CodeInvalidTransition = "invalid_transition"
	CodeNotFound          = "not_found"
	CodeStale             = "stale"
)

// Error is the typed rejection returned by the scheduling core. The code is
// machine-readable; the message is meant for the end user.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrValidation(format string, args ...any) *Error {
	return NewError(CodeValidation, format, args...)
}

func ErrSlotConflict(format string, args ...any) *Error {
	return NewError(CodeSlotConflict, format, args...)
}

func ErrForbidden(format string, args ...any) *Error {
	return NewError(CodeForbidden, format, args...)
}

func ErrInvalidTransition(format string, args ...any) *Error {
	return NewError(CodeInvalidTransition, format, args...)
}

func ErrNotFound(format string, args ...any) *Error {
	return NewError(CodeNotFound, format, args...)
}

func ErrStale(format string, args ...any) *Error {
	return NewError(CodeStale, format, args...)
}

// CodeOf extracts the domain error code, or "" for unclassified errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
