package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for transport mapping.
type Kind string

const (
	KindValidation Kind = "VALIDATION_FAILED"
	KindNotFound   Kind = "NOT_FOUND"
	KindInternal   Kind = "INTERNAL_ERROR"
)

// DepartmentNotAvailable is the message carried by department lookups that miss.
const DepartmentNotAvailable = "Department Not Available"

// Error standardizes errors crossing the service boundary.
type Error struct {
	Kind    Kind
	Message string
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

// HTTPStatus returns the response status for the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func NewValidation(message string, err error) error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func NewNotFound(message string, err error) error {
	return &Error{Kind: KindNotFound, Message: message, Err: err}
}

// NewInternal hides err behind a generic message.
func NewInternal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// From converts any error to an *Error. Unclassified errors become internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal(err)
}

// IsNotFound reports whether err carries KindNotFound.
func IsNotFound(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == KindNotFound
}

// IsValidation reports whether err carries KindValidation.
func IsValidation(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == KindValidation
}
