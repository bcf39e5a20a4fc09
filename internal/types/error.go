package types

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// CustomError is the service-level error carried up to the HTTP error handler.
// Code is the HTTP status, Type is a dotted category string used by clients.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// NewUnauthorized indicates a missing or invalid principal.
func NewUnauthorized(message, errType string) *CustomError {
	return &CustomError{Code: fiber.StatusUnauthorized, Message: message, Type: errType}
}

// NewForbidden indicates an authenticated principal without the required permission.
func NewForbidden(message, errType string) *CustomError {
	return &CustomError{Code: fiber.StatusForbidden, Message: message, Type: errType}
}

// NewNotFound indicates a missing resource or cross-reference target.
func NewNotFound(message, errType string) *CustomError {
	return &CustomError{Code: fiber.StatusNotFound, Message: message, Type: errType}
}

// NewInvalidArgument indicates malformed input, detected before any store access.
func NewInvalidArgument(message, errType string) *CustomError {
	return &CustomError{Code: fiber.StatusBadRequest, Message: message, Type: errType}
}

// NewConflict indicates a uniqueness violation, e.g. a duplicate ACL row.
func NewConflict(message, errType string) *CustomError {
	return &CustomError{Code: fiber.StatusConflict, Message: message, Type: errType}
}

// NewInternal wraps an unexpected store or backend failure.
func NewInternal(message, errType string) *CustomError {
	return &CustomError{Code: fiber.StatusInternalServerError, Message: message, Type: errType}
}

// AsCustomError unwraps err to a *CustomError if there is one in the chain.
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsNotFound reports whether err carries a 404 code.
func IsNotFound(err error) bool {
	ce, ok := AsCustomError(err)
	return ok && ce.Code == fiber.StatusNotFound
}
