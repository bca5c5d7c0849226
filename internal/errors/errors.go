// Package errors provides coded domain errors for the Slate API.
//
// Services return *Error values carrying a machine-readable Code. Handlers map
// the code to an HTTP status and echo it to clients as the error code.
//
//	if errors.Is(err, errors.ErrNameTaken) {
//	    // another collection of this owner already uses the slug
//	}
//
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    status := domainErr.HTTPStatus()
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Generic error codes.
const (
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeValidation   Code = "VALIDATION"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL"
	CodeRateLimited  Code = "RATE_LIMITED"
)

// Collection update codes. These are part of the public API contract.
const (
	CodeCollectionNotFound  Code = "COLLECTION_NOT_FOUND"
	CodeFileNotFound        Code = "FILE_NOT_FOUND"
	CodeNotOwner            Code = "NOT_OWNER"
	CodeInvalidName         Code = "INVALID_NAME"
	CodeNameTaken           Code = "NAME_TAKEN"
	CodePrivacyUpdateFailed Code = "PRIVACY_UPDATE_FAILED"
	CodeUpdateFailed        Code = "UPDATE_FAILED"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeCollectionNotFound, CodeFileNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeNameTaken:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotOwner:
		return http.StatusForbidden
	case CodeValidation, CodeInvalidName:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict            = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal            = &Error{Code: CodeInternal, Message: "internal error"}
	ErrRateLimited         = &Error{Code: CodeRateLimited, Message: "rate limit exceeded"}
	ErrCollectionNotFound  = &Error{Code: CodeCollectionNotFound, Message: "collection not found"}
	ErrFileNotFound        = &Error{Code: CodeFileNotFound, Message: "file not found"}
	ErrNotOwner            = &Error{Code: CodeNotOwner, Message: "collection belongs to another owner"}
	ErrInvalidName         = &Error{Code: CodeInvalidName, Message: "invalid collection name"}
	ErrNameTaken           = &Error{Code: CodeNameTaken, Message: "collection name already taken"}
	ErrPrivacyUpdateFailed = &Error{Code: CodePrivacyUpdateFailed, Message: "failed to update collection privacy"}
	ErrUpdateFailed        = &Error{Code: CodeUpdateFailed, Message: "failed to update collection"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// InvalidName creates an INVALID_NAME error with a specific reason.
func InvalidName(msg string) *Error {
	return &Error{Code: CodeInvalidName, Message: msg}
}

// NameTaken creates a NAME_TAKEN error naming the conflicting slug.
func NameTaken(slug string) *Error {
	return &Error{
		Code:    CodeNameTaken,
		Message: fmt.Sprintf("a collection named %q already exists", slug),
		Details: map[string]string{"slug": slug},
	}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a
// domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
