package handler

import (
	"errors"
	"net/http"
)

// ErrNilResponse indicates a handler returned nil instead of a Response.
var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError is an error that carries its HTTP status and the stable Key
// clients match on. Message is optional; the status text is used when empty.
type HTTPError struct {
	Code    int
	Key     string
	Message string
}

func (e HTTPError) Error() string {
	return e.Key
}

// NewHTTPError creates an HTTPError.
func NewHTTPError(code int, key, message string) HTTPError {
	return HTTPError{Code: code, Key: key, Message: message}
}

func (e HTTPError) message() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Code)
}

// Errors used by the request pipeline itself.
var (
	ErrBadRequest           = NewHTTPError(http.StatusBadRequest, "invalid_request", "Request could not be parsed")
	ErrUnsupportedMediaType = NewHTTPError(http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
	ErrRequestTooLarge      = NewHTTPError(http.StatusRequestEntityTooLarge, "request_too_large", "Request body is too large")
	ErrNotFound             = NewHTTPError(http.StatusNotFound, "not_found", "Resource not found")
	ErrMethodNotAllowed     = NewHTTPError(http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	ErrInternal             = NewHTTPError(http.StatusInternalServerError, "internal_error", "An error occurred processing your request")
)
