package storage

import (
	"errors"
	"fmt"
)

// Errors returned by Store implementations.
var (
	// ErrMatchNotFound is returned when a match does not exist.
	ErrMatchNotFound = errors.New("match not found")

	// ErrInvalidMatch is returned for incomplete match parameters.
	ErrInvalidMatch = errors.New("invalid match")

	// ErrDuplicateMatch is returned when a match ID is reused.
	ErrDuplicateMatch = errors.New("match already exists")

	// ErrOutOfOrder is returned when deltas are not appended in seq order.
	ErrOutOfOrder = errors.New("delta out of order")
)

func wrap(err error, msg string) error {
	return fmt.Errorf("%w: %s", err, msg)
}
