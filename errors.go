package arenawatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/youssefsiam38/arenawatch/storage"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the spectator configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotStarted is returned when calling methods before Start()
	ErrNotStarted = errors.New("spectator not started")

	// ErrAlreadyStarted is returned when Start() is called twice
	ErrAlreadyStarted = errors.New("spectator already started")

	// ErrSessionClosed is returned when a closed session is used
	ErrSessionClosed = errors.New("session closed")

	// ErrDecode is returned when a stream payload cannot be decoded
	ErrDecode = errors.New("payload decode failed")

	// ErrRender is returned when a renderer fails
	ErrRender = errors.New("renderer failed")

	// ErrMatchNotFound is returned when an archived match does not exist
	ErrMatchNotFound = storage.ErrMatchNotFound
)

// SpectatorError represents an error with additional context
type SpectatorError struct {
	Op      string         // Operation that failed
	Err     error          // Underlying error
	MatchID uuid.UUID      // Match ID if applicable
	Context map[string]any // Additional context
}

// Error implements the error interface
func (e *SpectatorError) Error() string {
	if e.MatchID != uuid.Nil {
		return fmt.Sprintf("%s (match=%s): %v", e.Op, e.MatchID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *SpectatorError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *SpectatorError) WithContext(key string, value any) *SpectatorError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewSpectatorError creates a new SpectatorError
func NewSpectatorError(op string, err error) *SpectatorError {
	return &SpectatorError{
		Op:  op,
		Err: err,
	}
}

// NewMatchError creates a new SpectatorError with match ID
func NewMatchError(op string, matchID uuid.UUID, err error) *SpectatorError {
	return &SpectatorError{
		Op:      op,
		Err:     err,
		MatchID: matchID,
	}
}
