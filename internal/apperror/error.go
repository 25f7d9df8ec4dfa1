// Package apperror holds the error taxonomy shared by the kinship engine,
// the orchestrator and the HTTP layer.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable error code returned to clients.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindNotFound           Kind = "NOT_FOUND"
	KindDuplicate          Kind = "DUPLICATE"
	KindLimit              Kind = "LIMIT"
	KindMissingParent      Kind = "MISSING_PARENT"
	KindMissingGrandparent Kind = "MISSING_GRANDPARENT"
	KindWeakPassword       Kind = "WEAK_PASSWORD"
	KindForbidden          Kind = "FORBIDDEN"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindInternal           Kind = "INTERNAL"
)

// HTTPStatus maps a kind onto its transport status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindLimit, KindMissingParent, KindMissingGrandparent, KindWeakPassword:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error. Internal is never sent to clients.
type Error struct {
	Kind     Kind
	Message  string
	Internal error
	Details  map[string]any
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// HTTPStatus returns the status code for the error's kind.
func (e *Error) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// WithInternal returns a copy of the error carrying the underlying cause.
func (e *Error) WithInternal(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Internal: err, Details: e.Details}
}

// WithDetails returns a copy of the error with details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Internal: e.Internal, Details: details}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(message string) *Error { return New(KindValidation, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Duplicate(message string) *Error { return New(KindDuplicate, message) }

func Limit(message string) *Error { return New(KindLimit, message) }

func MissingParent(message string) *Error { return New(KindMissingParent, message) }

func MissingGrandparent(message string) *Error { return New(KindMissingGrandparent, message) }

func WeakPassword(message string) *Error { return New(KindWeakPassword, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

// Internal wraps an unexpected failure. The message shown to clients is generic.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal error", Internal: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Payload is the JSON body written for failed requests.
type Payload struct {
	Message string         `json:"message"`
	Code    Kind           `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// ToHTTPError converts any error into a status code and a client-safe body.
func ToHTTPError(err error) (int, Payload) {
	appErr, ok := As(err)
	if !ok || appErr.Kind == KindInternal {
		return http.StatusInternalServerError, Payload{Message: "Internal error", Code: KindInternal}
	}
	return appErr.HTTPStatus(), Payload{
		Message: appErr.Message,
		Code:    appErr.Kind,
		Details: appErr.Details,
	}
}
