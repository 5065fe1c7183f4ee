package main

import (
	"errors"
	"net/http"
)

// Error taxonomy shared by the store clients and the view models. Handlers
// translate these into HTTP statuses via toStatusError; everything else is
// treated as a remote failure.
var (
	ErrUnauthorized = errors.New("app: unauthorized")
	ErrNotFound     = errors.New("app: not found")
	ErrValidation   = errors.New("app: validation failed")
)

func toStatusError(err error) *StatusError {
	switch {
	case errors.Is(err, ErrValidation):
		return &StatusError{Err: err, Status: http.StatusBadRequest}
	case errors.Is(err, ErrUnauthorized):
		return &StatusError{Err: err, Status: http.StatusUnauthorized}
	case errors.Is(err, ErrNotFound):
		return &StatusError{Err: err, Status: http.StatusNotFound}
	default:
		return &StatusError{Err: err, Status: http.StatusInternalServerError}
	}
}
