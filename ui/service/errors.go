package service

import "errors"

// Service package errors.
var (
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = errors.New("service: not found")

	// ErrNoSource indicates the view was built without a live source.
	ErrNoSource = errors.New("service: no live source")

	// ErrArchiveDisabled indicates the view was built without a store.
	ErrArchiveDisabled = errors.New("service: archive disabled")

	// ErrInvalidParams indicates a malformed filter.
	ErrInvalidParams = errors.New("service: invalid parameters")
)
