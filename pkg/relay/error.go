package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// HttpError represents an HTTP error with a specific status code and message
type HttpError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewHttpError creates a new HttpError with the given status code and message
func NewHttpError(statusCode int, message string) *HttpError {
	return &HttpError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewHttpErrorWithDetails creates a new HttpError with additional details
func NewHttpErrorWithDetails(statusCode int, message string, details any) *HttpError {
	return &HttpError{
		StatusCode: statusCode,
		Message:    message,
		Details:    details,
	}
}

// Common HTTP error constructors for convenience

// ErrBadRequest creates a 400 Bad Request error
func ErrBadRequest(message string) *HttpError {
	return NewHttpError(http.StatusBadRequest, message)
}

// ErrUnauthorized creates a 401 Unauthorized error
func ErrUnauthorized(message string) *HttpError {
	return NewHttpError(http.StatusUnauthorized, message)
}

// ErrForbidden creates a 403 Forbidden error
func ErrForbidden(message string) *HttpError {
	return NewHttpError(http.StatusForbidden, message)
}

// ErrNotFound creates a 404 Not Found error
func ErrNotFound(message string) *HttpError {
	return NewHttpError(http.StatusNotFound, message)
}

// ErrPayloadTooLarge creates a 413 Content Too Large error
func ErrPayloadTooLarge(message string) *HttpError {
	return NewHttpError(http.StatusRequestEntityTooLarge, message)
}

// ErrUnprocessableEntity creates a 422 Unprocessable Entity error
func ErrUnprocessableEntity(message string) *HttpError {
	return NewHttpError(http.StatusUnprocessableEntity, message)
}

// ErrUnprocessableEntityWithDetails creates a 422 Unprocessable Entity error with validation details
func ErrUnprocessableEntityWithDetails(message string, details any) *HttpError {
	return NewHttpErrorWithDetails(http.StatusUnprocessableEntity, message, details)
}

// ErrInternalServerError creates a 500 Internal Server Error
func ErrInternalServerError(message string) *HttpError {
	return NewHttpError(http.StatusInternalServerError, message)
}

// authorizationRequired is produced when an authorization check denies a
// request whose action declares no required roles; accessDenied when the
// action does declare roles.
func authorizationRequired() *HttpError {
	return ErrUnauthorized("Authorization is required for this action")
}

func accessDenied() *HttpError {
	return ErrForbidden("Access is denied")
}

// Configuration errors. These indicate a broken setup, not a bad request,
// and are never silently ignored.
var (
	// ErrRegistryFrozen is returned when registering descriptors after the
	// registry has been mounted.
	ErrRegistryFrozen = errors.New("relay: registry is frozen")

	// ErrAuthorizationCheckerMissing is returned for every request to an
	// authorized action when no AuthorizationChecker was configured.
	ErrAuthorizationCheckerMissing = errors.New("relay: action requires authorization but no authorization checker is configured")
)

func errUnknownMiddleware(name string) error {
	return fmt.Errorf("relay: middleware %q is not registered", name)
}

func errUnknownParamKind(k ParamKind) error {
	return fmt.Errorf("relay: unknown parameter kind %d", int(k))
}
