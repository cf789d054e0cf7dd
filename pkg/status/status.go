// Package status defines the error taxonomy shared by every layer of the
// device-management core.
//
// Errors carry a CoAP response code so that the request router can turn any
// failure into a response without guessing. Internal helpers never build
// responses themselves; they return a *Error (or wrap one) and let the router
// decide.
package status

import (
	"errors"
	"fmt"

	"github.com/plgd-dev/go-coap/v3/message/codes"
)

// Error is an error with an attached CoAP response code.
type Error struct {
	Code    codes.Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

// Is reports whether target is a status error with the same code.
// This lets callers write errors.Is(err, status.ErrNotFound) regardless of
// the message attached to err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel errors, one per code in the taxonomy.
var (
	ErrBadRequest         = &Error{Code: codes.BadRequest}
	ErrNotFound           = &Error{Code: codes.NotFound}
	ErrMethodNotAllowed   = &Error{Code: codes.MethodNotAllowed}
	ErrNotAcceptable      = &Error{Code: codes.NotAcceptable}
	ErrPreconditionFailed = &Error{Code: codes.PreconditionFailed}
	ErrUnsupportedFormat  = &Error{Code: codes.UnsupportedMediaType}
	ErrRequestTooLarge    = &Error{Code: codes.RequestEntityTooLarge}
	ErrInternal           = &Error{Code: codes.InternalServerError}
	ErrNotImplemented     = &Error{Code: codes.NotImplemented}
)

// New returns a status error with the given code and message.
func New(code codes.Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Errorf returns a status error with a formatted message.
func Errorf(code codes.Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the CoAP code carried by err.
// A nil error yields codes.Empty; errors without a status yield
// codes.InternalServerError.
func CodeOf(err error) codes.Code {
	if err == nil {
		return codes.Empty
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return codes.InternalServerError
}

// IsSuccess reports whether code is in the 2.xx class.
func IsSuccess(code codes.Code) bool {
	return code>>5 == 2
}

// ClassString formats a code in dotted CoAP notation, e.g. "4.04".
func ClassString(code codes.Code) string {
	return fmt.Sprintf("%d.%02d", code>>5, code&0x1f)
}
