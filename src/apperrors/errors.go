// backend/src/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by who is at fault and how it should be surfaced.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindModelNotConfigured
	KindModelTransport
	KindModelMalformed
	KindModelReported
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindModelNotConfigured:
		return "model_not_configured"
	case KindModelTransport:
		return "model_transport"
	case KindModelMalformed:
		return "model_malformed"
	case KindModelReported:
		return "model_reported"
	default:
		return "internal"
	}
}

// Error carries a client-safe message and the kind used to pick the HTTP status.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps err reachable through errors.Is/As while exposing only message.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation is shorthand for the most common kind.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// StatusCode maps an error to the HTTP status it should be reported with.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation, KindModelReported:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindModelTransport, KindModelMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Errors outside this package
// are not leaked verbatim.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An internal error occurred. Please try again later."
}
