package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a storage error carrying the HTTP status it maps to.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same status and message, so wrapped
// copies made by WithCause still satisfy errors.Is against the sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	// ErrCollectionNotFound is returned when a collection id is unknown.
	ErrCollectionNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "collection not found",
	}

	// ErrFileNotFound is returned when a file id is unknown.
	ErrFileNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "file not found",
	}

	// ErrSlugTaken is returned when an owner already has a collection with
	// the requested slug.
	ErrSlugTaken = &Error{
		Code:    http.StatusConflict,
		Message: "slug already used by another collection",
	}

	// ErrOwnerMismatch is returned when a file and collection belong to
	// different owners.
	ErrOwnerMismatch = &Error{
		Code:    http.StatusForbidden,
		Message: "file and collection have different owners",
	}
)
