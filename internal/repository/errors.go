package repository

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = errors.New("draft not found")
	ErrValidation = errors.New("invalid draft")
	ErrConflict   = errors.New("draft was modified concurrently")
)

// StatusError is a non-2xx response from a remote draft store.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote store responded %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("remote store responded %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match a StatusError against the sentinel with the same meaning.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrConflict:
		return e.Code == http.StatusConflict
	case ErrValidation:
		return e.Code == http.StatusBadRequest || e.Code == http.StatusUnprocessableEntity
	}
	return false
}

// StatusCode maps a repository error to the HTTP status it is served as.
func StatusCode(err error) int {
	var se *StatusError
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.As(err, &se):
		return se.Code
	}
	return http.StatusInternalServerError
}
