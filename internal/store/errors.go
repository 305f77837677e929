package store

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound is returned for rooms that never existed and for
	// rooms that have expired; callers cannot tell the two apart.
	ErrRoomNotFound     = errors.New("room not found")
	ErrAlreadyExists    = errors.New("room already exists")
	ErrItemNotFound     = errors.New("item not found")
	ErrValidationFailed = errors.New("validation failed")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

func required(field string) error {
	return validationError("%s is required", field)
}
