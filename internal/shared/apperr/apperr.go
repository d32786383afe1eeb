// Package apperr normalises store, transport and validation failures into a
// small closed set of kinds that handlers can map to HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Kind string

const (
	KindTransient    Kind = "transient"
	KindAccessDenied Kind = "access_denied"
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnexpected   Kind = "unexpected"
)

const (
	MsgAccessDenied = "You do not have permission to perform this action."
	MsgTransient    = "The service is temporarily unavailable. Please try again."
	MsgNotFound     = "The requested record was not found."
)

// Error is the only error type services return across their boundary.
type Error struct {
	Kind    Kind
	Message string
	Code    string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NotFound(msg string) *Error {
	if msg == "" {
		msg = MsgNotFound
	}
	return &Error{Kind: KindNotFound, Message: msg}
}

func AccessDenied(msg string) *Error {
	if msg == "" {
		msg = MsgAccessDenied
	}
	return &Error{Kind: KindAccessDenied, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

var transientKeywords = []string{
	"fetch failed",
	"network error",
	"timeout",
	"connection refused",
	"temporary failure",
}

// HasTransientKeyword reports whether msg carries one of the network-failure
// phrases the retry wrapper treats as retryable.
func HasTransientKeyword(msg string) bool {
	msg = strings.ToLower(msg)
	for _, kw := range transientKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// IsConnectionCode reports whether a SQLSTATE belongs to the connection
// exception class or to server shutdown/startup.
func IsConnectionCode(code string) bool {
	switch code {
	case "08000", "08001", "08003", "08004", "08006", "08007", "57P01", "57P02", "57P03":
		return true
	}
	return false
}

// Normalize maps any error to an *Error. Already-normalised errors pass through.
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: KindNotFound, Message: MsgNotFound, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromPgError(pgErr)
	}

	if HasTransientKeyword(err.Error()) {
		return &Error{Kind: KindTransient, Message: MsgTransient, Err: err}
	}

	return &Error{
		Kind:    KindUnexpected,
		Message: fmt.Sprintf("An unexpected error occurred: %s", err.Error()),
		Err:     err,
	}
}

func fromPgError(pgErr *pgconn.PgError) *Error {
	code := pgErr.Code
	switch {
	case IsConnectionCode(code):
		return &Error{Kind: KindTransient, Message: MsgTransient, Code: code, Err: pgErr}
	case code == "42501":
		return &Error{Kind: KindAccessDenied, Message: MsgAccessDenied, Code: code, Err: pgErr}
	case code == "23505":
		return &Error{Kind: KindConflict, Message: "A record with these details already exists.", Code: code, Err: pgErr}
	case code == "42P01":
		return &Error{Kind: KindNotFound, Message: pgErr.Message, Code: code, Err: pgErr}
	case strings.HasPrefix(code, "23"), strings.HasPrefix(code, "22"):
		return &Error{Kind: KindValidation, Message: pgErr.Message, Code: code, Err: pgErr}
	}
	return &Error{
		Kind:    KindUnexpected,
		Message: fmt.Sprintf("An unexpected error occurred: %s", pgErr.Message),
		Code:    code,
		Err:     pgErr,
	}
}

// Is reports whether err normalises to kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var appErr *Error
	if errors.As(Normalize(err), &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// HTTPStatus returns the status code a handler should answer with.
func HTTPStatus(err error) int {
	var appErr *Error
	if !errors.As(Normalize(err), &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindTransient:
		return fiber.StatusServiceUnavailable
	case KindAccessDenied:
		return fiber.StatusForbidden
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// Fiber converts err into a *fiber.Error for route handlers.
func Fiber(err error) *fiber.Error {
	return fiber.NewError(HTTPStatus(err), Normalize(err).Error())
}
