// Package apperr defines the closed set of domain error kinds surfaced by
// services and mapped to HTTP statuses at the API boundary.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindClient       Kind = "client"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindOverloaded   Kind = "overloaded"
	KindServer       Kind = "server"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

func Client(message string) *Error {
	return &Error{Kind: KindClient, Status: http.StatusBadRequest, Message: message}
}

func Validation(fields []FieldError) *Error {
	return &Error{
		Kind:    KindValidation,
		Status:  http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Fields:  fields,
	}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusConflict, Message: message}
}

func Overloaded(message string) *Error {
	return &Error{Kind: KindOverloaded, Status: http.StatusServiceUnavailable, Message: message}
}

func Server(message string) *Error {
	return &Error{Kind: KindServer, Status: http.StatusInternalServerError, Message: message}
}

// From returns err as an *Error, wrapping unrecognized errors as KindServer.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindServer, Status: http.StatusInternalServerError, Message: err.Error()}
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
