package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/go-cliproom/internal/store"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

// NewValidationError reports which input was rejected.
func NewValidationError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    err.Error(),
		Err:        err,
	}
}

func NewNotFoundError(err error) *ApiError {
	msg := lower(http.StatusText(http.StatusNotFound))
	if err != nil {
		msg = err.Error()
	}

	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    msg,
		Err:        err,
	}
}

func NewConflictError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    err.Error(),
		Err:        err,
	}
}

func NewRequestTooLargeError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusRequestEntityTooLarge,
		Message:    lower(http.StatusText(http.StatusRequestEntityTooLarge)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

// storeError maps a store failure to its HTTP equivalent.
func storeError(err error) *ApiError {
	switch {
	case errors.Is(err, store.ErrRoomNotFound), errors.Is(err, store.ErrItemNotFound):
		return NewNotFoundError(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return NewConflictError(err)
	case errors.Is(err, store.ErrValidationFailed):
		return NewValidationError(err)
	default:
		return NewInternalServerError(err)
	}
}
