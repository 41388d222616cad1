// Package apperrors defines the error taxonomy shared by the account
// service and the HTTP layer. Every operation failure is one of these
// kinds; handlers map kinds to HTTP status codes with HTTPStatus.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	// KindValidation covers malformed input: password too short, mismatched
	// confirmation, missing required fields. Safe to surface verbatim.
	KindValidation
	// KindNotFound means no matching account.
	KindNotFound
	// KindNoPermission covers locked/invited/inactive accounts and the
	// reset-token lockout.
	KindNoPermission
	// KindUnauthorized means a failed password comparison during login.
	KindUnauthorized
	// KindBadRequest covers structurally invalid or expired reset tokens.
	KindBadRequest
)

// Error is an application error with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two apperrors of the same kind, so callers can
// compare against the exported sentinels below without caring about the
// message text.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrNoPermission = &Error{Kind: KindNoPermission, Message: "no permission"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrBadRequest   = &Error{Kind: KindBadRequest, Message: "bad request"}
	ErrInternal     = &Error{Kind: KindInternal, Message: "internal error"}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error   { return New(KindValidation, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func NoPermission(msg string) *Error { return New(KindNoPermission, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func BadRequest(msg string) *Error   { return New(KindBadRequest, msg) }
func Internal(err error) *Error      { return Wrap(KindInternal, "internal error", err) }

// KindOf returns the kind of err, or KindInternal for anything outside the
// taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message for err; unknown errors get a
// generic message so internals never leak to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "something went wrong"
}

// HTTPStatus maps an error kind to the HTTP status the handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindNoPermission:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
