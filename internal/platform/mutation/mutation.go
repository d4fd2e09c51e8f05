// Package mutation classifies domain errors and renders the uniform mutation
// envelope {<entity_key>: entity-or-null, "success": bool, "errors": [...]}.
// Domain failures never surface as transport faults; they come back as the
// envelope with the matching HTTP status.
package mutation

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind sentinels. Services wrap these with a user-facing message; handlers
// map them to HTTP statuses with StatusOf. errors.Is matches the kind through
// the wrapper.
var (
	ErrNotFound = errors.New("not found")
	ErrDenied   = errors.New("permission denied")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
)

// Error carries a user-facing message tagged with one of the kind sentinels.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// NotFound builds a not-found error with the given message.
func NotFound(msg string) error { return &Error{kind: ErrNotFound, msg: msg} }

// Denied builds a permission-denied error with the given message.
func Denied(msg string) error { return &Error{kind: ErrDenied, msg: msg} }

// Conflict builds a conflict error with the given message.
func Conflict(msg string) error { return &Error{kind: ErrConflict, msg: msg} }

// Invalid builds a validation error with the given message.
func Invalid(msg string) error { return &Error{kind: ErrInvalid, msg: msg} }

// StatusOf maps an error to the HTTP status of its kind. Errors that carry no
// kind are treated as validation failures: store-level errors never escape as
// transport faults.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// Respond writes the envelope for a successful mutation.
func Respond(c echo.Context, status int, key string, entity interface{}) error {
	return c.JSON(status, map[string]interface{}{
		key:       entity,
		"success": true,
		"errors":  []string{},
	})
}

// RespondError writes the envelope for a failed mutation. The entity slot is
// null and the error's message is the single element of errors.
func RespondError(c echo.Context, key string, err error) error {
	return c.JSON(StatusOf(err), map[string]interface{}{
		key:       nil,
		"success": false,
		"errors":  []string{err.Error()},
	})
}
