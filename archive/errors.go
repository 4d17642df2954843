package archive

import "errors"

// Errors returned by the archive package.
var (
	// ErrAlreadyStarted is returned when Start() is called on a running recorder.
	ErrAlreadyStarted = errors.New("recorder already started")

	// ErrNotStarted is returned when Stop() is called on a recorder that hasn't started.
	ErrNotStarted = errors.New("recorder not started")
)
