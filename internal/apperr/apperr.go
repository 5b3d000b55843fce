package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an operation failure so handlers can map it to a status
// code without inspecting messages.
type Kind int

const (
	NotFound Kind = iota + 1
	Forbidden
	InvalidState
	InsufficientFunds
	Conflict
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or 0 for untyped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// Respond writes err as a JSON error response with the matching status code.
// Untyped errors become 500 with a generic message so internals don't leak.
func Respond(c echo.Context, err error) error {
	switch KindOf(err) {
	case NotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case Forbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case InvalidState:
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case InsufficientFunds:
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": err.Error()})
	case Conflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
