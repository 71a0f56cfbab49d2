// Package domainerrors provides coded errors for domain logic. Services
// raise these so transport layers can map failures to responses without
// inspecting error strings, and so tests can assert on failure classes.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeValidation covers malformed names: forbidden characters or a
	// name over the configured length limit.
	CodeValidation Code = "validation"
	// CodeAvailability is raised when a name is not available for minting.
	CodeAvailability Code = "availability"
	// CodePricing is raised when no price, or a zero price, is configured
	// for the computed length bucket.
	CodePricing Code = "pricing"
	// CodeDuration is raised when a rental duration is below the minimum.
	CodeDuration Code = "duration"
	// CodePayment is raised when the supplied payment cannot cover cost.
	CodePayment Code = "payment"
	// CodeExpiration is raised when mutating an expired name or depositing
	// an expired token.
	CodeExpiration Code = "expiration"
	// CodeNotFound is raised when a token id is absent from a container or
	// a name hash has no record.
	CodeNotFound Code = "not_found"
	// CodeState is raised when an administrative precondition is violated,
	// e.g. swapping out a non-empty escrow vault.
	CodeState Code = "state"
	// CodeDelegation is raised when a capability reference fails to
	// resolve: revoked, wrong target, or operation outside the grant.
	CodeDelegation Code = "delegation"

	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal_error"
)

// Error carries a code alongside the message and an optional wrapped cause.
type Error struct {
	code    Code
	message string
	cause   error
}

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause stays
// reachable through errors.Is / errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the failure class.
func (e *Error) Code() Code { return e.code }

// Message returns the human-readable description without the cause chain.
func (e *Error) Message() string { return e.message }

// HasCode reports whether err or anything in its chain carries the code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that never passed through this package.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.code
	}
	return CodeInternal
}

// Is lets coded errors match each other by code, so callers can use
// errors.Is(err, domainerrors.New(code, "")) style sentinels if preferred.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.code == other.code
	}
	return false
}
