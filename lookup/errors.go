package lookup

import "errors"

var (
	// ErrNotFound is returned when the platform has no such agent.
	ErrNotFound = errors.New("agent not found")

	// ErrUnexpectedStatus is returned for non-200 responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
