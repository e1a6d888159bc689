package errors

import (
	"errors"
	"fmt"
)

// Error represents a typed scheduling error. Fatal errors abort the run that raised them.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, fatal bool, message string) *Error {
	return &Error{Code: code, Fatal: fatal, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, fatal bool, message string) *Error {
	return &Error{Code: code, Fatal: fatal, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrConstraintUnsatisfiable = New("CONSTRAINT_UNSATISFIABLE", false, "constraint cannot reach its required sessions")
	ErrTimeout                 = New("TIMEOUT", false, "scheduling budget exceeded")
	ErrInvalidConfiguration    = New("INVALID_CONFIGURATION", true, "invalid scheduling configuration")
	ErrAlgorithmInternal       = New("ALGORITHM_INTERNAL_ERROR", true, "scheduler invariant violated")
	ErrNotFound                = New("NOT_FOUND", true, "resource not found")
	ErrValidation              = New("VALIDATION_ERROR", true, "validation failed")
	ErrInternal                = New("INTERNAL_ERROR", true, "internal error")
	ErrCacheMiss               = New("CACHE_MISS", false, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Fatal, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// IsFatal reports whether err must abort the run. Untyped errors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal
	}
	return true
}
