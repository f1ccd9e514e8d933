// Package apperr classifies failures by origin so every layer can surface a
// user-facing message and an HTTP status without inspecting error strings.
//
//	err := apperr.Wrap(apperr.KindNetwork, "backend.login", "no se pudo conectar con el servidor", cause)
//	apperr.KindOf(err)      // KindNetwork
//	apperr.UserMessage(err) // "no se pudo conectar con el servidor"
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the loose origin category of an error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindUpload     Kind = "upload"
	KindProcessing Kind = "processing"
	KindNetwork    Kind = "network"
	KindServer     Kind = "server"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindState      Kind = "state"
	KindInternal   Kind = "internal"
)

// Error carries a category, the failing operation and a user-facing message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to the status returned by the HTTP layer.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Kind)
}

// StatusFor returns the HTTP status associated with a kind.
func StatusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUpload:
		return http.StatusBadRequest
	case KindProcessing, KindServer:
		return http.StatusBadGateway
	case KindNetwork:
		return http.StatusGatewayTimeout
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// New returns an Error without an underlying cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Wrap returns an Error around cause.
func Wrap(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the message meant for the end user. Errors that were
// never classified get a generic text so internals do not leak.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "ocurrió un error inesperado"
}
