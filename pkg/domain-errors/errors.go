// Package domainerrors defines the error type returned across service and
// transport boundaries. Every error carries a stable Code and a message that is
// safe to show to the caller.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error kind.
type Code string

const (
	// CodeValidation: malformed or missing input. User-correctable.
	CodeValidation Code = "validation_error"
	// CodePrecondition: the entity is not in a state that permits the request.
	CodePrecondition Code = "precondition_failed"
	// CodeInvalidState: the transition is illegal from the current state.
	CodeInvalidState Code = "invalid_state"
	// CodeConflict: uniqueness violation.
	CodeConflict Code = "conflict"
	// CodeConcurrentModification: a compare-and-set lost the race. Re-fetch and retry.
	CodeConcurrentModification Code = "concurrent_modification"
	// CodeExternalService: blob store, OCR or discovery collaborator failure.
	CodeExternalService Code = "external_service_error"

	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is the domain error. Err is kept for logging and errors.Is chains but
// never rendered to clients.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given code.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost domain error in the chain, or
// CodeInternal when the chain carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the outermost domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
