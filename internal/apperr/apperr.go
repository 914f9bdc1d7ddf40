// Package apperr classifies failures so the HTTP layer can map them to a
// stable status code and machine-readable code without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the class of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthentication
	KindOwnership
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindOwnership:
		return "ownership"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindOwnership:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Detail describes a single invalid field.
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified error. Err is the underlying cause, if any.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []Detail
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string, details ...Detail) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: message, Details: details}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindAuthentication, Code: "UNAUTHORIZED", Message: message}
}

func Ownership(message string) *Error {
	return &Error{Kind: KindOwnership, Code: "FORBIDDEN", Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: "ALREADY_EXISTS", Message: message}
}

func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Code: "BAD_GATEWAY", Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// As returns err as a classified error. Unclassified errors become
// KindInternal with a generic message, keeping err as the cause.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("operation failed", err)
}

// Wrap keeps classified errors as they are and wraps anything else as an
// internal failure of the named operation.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Internal(op+" failed", err)
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
