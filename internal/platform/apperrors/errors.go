// Package apperrors defines the error taxonomy shared by all services.
// Services wrap these sentinels with fmt.Errorf("...: %w", ...); handlers
// translate them to HTTP status codes with HTTPStatus.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal error")
)

// HTTPStatus maps a service error to the HTTP status code handlers return.
// NotFound wins over Forbidden only when existence itself is false; that
// ordering is decided in the services, not here.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the error text safe to put in a response body. Errors
// wrapped around ErrInternal carry only the failing step (services log the
// cause separately), so their text passes through; any other error mapping
// to a 500 is unclassified and is reduced to the sentinel text so driver
// and collaborator details stay out of responses.
func PublicMessage(err error) string {
	if errors.Is(err, ErrInternal) {
		return err.Error()
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return ErrInternal.Error()
	}
	return err.Error()
}
