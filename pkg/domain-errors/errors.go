// Package dErrors provides coded domain errors shared across services.
//
// Stores return sentinel errors (pkg/platform/sentinel) for infrastructure
// facts; services translate them into coded errors with New/Wrap so handlers
// can map codes to transport status without string matching.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and recovery decisions.
type Code string

const (
	// CodeValidation: structured field-level validation failure.
	CodeValidation Code = "validation"
	// CodeInvalidInput: a single malformed or out-of-range input value.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest: malformed request at the transport boundary.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized: a missing, expired, or unverifiable credential.
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound: referenced entity does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict: duplicate submission or an entity in a conflicting state.
	CodeConflict Code = "conflict"
	// CodeLimitExceeded: the operation would breach the statutory aggregate cap.
	// Recoverable by the caller offering a reduced amount.
	CodeLimitExceeded Code = "limit_exceeded"
	// CodeUnavailable: an external collaborator declared failure.
	CodeUnavailable Code = "unavailable"
	// CodeTimeout: an external collaborator's outcome is unknown. Must be
	// surfaced distinctly so the caller reconciles instead of retrying.
	CodeTimeout Code = "timeout"
	// CodeInternal: unexpected infrastructure failure.
	CodeInternal Code = "internal"
	// CodeInvariantViolation: a domain invariant was broken; indicates a bug.
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded domain error. The wrapped cause, when present, is
// reachable via errors.Is/errors.As.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded domain error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or any error in its chain) carries the code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.cause
	}
	return false
}

// CodeOf returns the code of the outermost domain error in the chain, or
// CodeInternal when err carries no code.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost domain error in the chain,
// or an empty string when err carries no code.
func MessageOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}
