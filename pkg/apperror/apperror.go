// Package apperror defines the error taxonomy shared by the service layer
// and the HTTP handlers. Every failure a client can observe is one of these
// kinds; anything else is wrapped as Internal.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindInsufficientStock
	KindInvalidState
	KindConflict
)

type Error struct {
	Kind    Kind
	Message string
	// Available carries the sellable quantity for insufficient-stock
	// failures so the client can show what is left.
	Available int
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

func InsufficientStock(available int) *Error {
	return &Error{Kind: KindInsufficientStock, Message: "insufficient stock", Available: available}
}

func InvalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", cause: err}
}

// KindOf reports the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AvailableOf returns the available quantity attached to an
// insufficient-stock error and whether err carries one.
func AvailableOf(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindInsufficientStock {
		return e.Available, true
	}
	return 0, false
}

// HTTPStatus maps an error kind to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument, KindInsufficientStock, KindInvalidState, KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
